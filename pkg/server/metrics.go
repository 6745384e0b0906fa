package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	commandsTotal      *prometheus.CounterVec
	snapshotsBroadcast prometheus.Counter
	clientsConnected   prometheus.Gauge
	clientsTotal       prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance backed by a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "augview_commands_total",
				Help: "Total number of pipeline commands processed by type and status",
			},
			[]string{"command", "status"},
		),
		snapshotsBroadcast: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "augview_snapshots_broadcast_total",
				Help: "Total number of pipeline snapshots broadcast to channel clients",
			},
		),
		clientsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "augview_channel_clients",
				Help: "Number of currently connected channel clients",
			},
		),
		clientsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "augview_channel_clients_total",
				Help: "Total number of channel client connections accepted",
			},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "augview_http_requests_total",
				Help: "Total number of HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "augview_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.commandsTotal,
		m.snapshotsBroadcast,
		m.clientsConnected,
		m.clientsTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCommand counts one processed command.
func (m *Metrics) RecordCommand(command, status string) {
	m.commandsTotal.WithLabelValues(command, status).Inc()
}

// RecordBroadcast counts one snapshot fan-out.
func (m *Metrics) RecordBroadcast() {
	m.snapshotsBroadcast.Inc()
}

// ClientConnected tracks a channel client arriving.
func (m *Metrics) ClientConnected() {
	m.clientsConnected.Inc()
	m.clientsTotal.Inc()
}

// ClientDisconnected tracks a channel client leaving.
func (m *Metrics) ClientDisconnected() {
	m.clientsConnected.Dec()
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument wraps a handler with request counting and latency histograms.
// The path label uses the route pattern, not the raw URL, to bound
// cardinality.
func (m *Metrics) Instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
