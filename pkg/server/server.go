// Package server exposes the pipeline over HTTP: the REST endpoints used
// for initial load and as the fallback write path, and the websocket
// channel that pushes full snapshots to clients.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/augview/augview/pkg/domain"
	"github.com/augview/augview/pkg/viewer"
)

const maxUploadBytes = 32 << 20

// Server wires the viewer to its HTTP surface.
type Server struct {
	viewer  *viewer.Viewer
	logger  *slog.Logger
	metrics *Metrics
	hub     *Hub
}

// New creates a server for the viewer. Passing a nil metrics instance
// disables instrumentation (used by tests).
func New(v *viewer.Viewer, logger *slog.Logger, metrics *Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		viewer:  v,
		logger:  logger,
		metrics: metrics,
		hub:     NewHub(v, logger, metrics),
	}
}

// Hub returns the websocket hub, mainly for tests.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the route table. All responses are JSON except the
// placeholder index page.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		var handler http.Handler = h
		if s.metrics != nil {
			handler = s.metrics.Instrument(pattern, handler)
		}
		mux.Handle(pattern, handler)
	}

	route("GET /api/pipeline", s.handlePipeline)
	route("POST /api/upload", s.handleUpload)
	route("POST /api/rerun", s.handleRerun)
	route("PUT /api/step/{id}/params", s.handleParams)
	route("PUT /api/step/{id}/toggle", s.handleToggle)
	route("GET /healthz", s.handleHealth)
	route("GET /{$}", s.handleIndex)

	mux.Handle("/ws", s.hub)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return otelhttp.NewHandler(withCORS(mux), "augview-server")
}

// withCORS mirrors the permissive development CORS policy of the UI server.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if s.viewer == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": domain.ErrNoPipeline.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.Pipeline())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		s.commandResult(w, "upload", http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	if err := s.viewer.LoadImage(r.Context(), file); err != nil {
		s.commandResult(w, "upload", http.StatusBadRequest, err)
		return
	}

	s.countCommand("upload", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"pipeline": s.viewer.Pipeline(),
	})
}

func (s *Server) handleRerun(w http.ResponseWriter, r *http.Request) {
	if err := s.viewer.Rerun(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoImage) {
			status = http.StatusBadRequest
		}
		s.commandResult(w, domain.CommandRerun, status, err)
		return
	}

	s.countCommand(domain.CommandRerun, "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"pipeline": s.viewer.Pipeline(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	stepID := r.PathValue("id")

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.commandResult(w, domain.CommandUpdateParam, http.StatusBadRequest, err)
		return
	}

	for name, value := range params {
		if err := s.viewer.UpdateStepParam(r.Context(), stepID, name, value); err != nil {
			s.commandResult(w, domain.CommandUpdateParam, commandStatus(err), err)
			return
		}
	}

	s.countCommand(domain.CommandUpdateParam, "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	stepID := r.PathValue("id")

	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		s.commandResult(w, domain.CommandToggleStep, http.StatusBadRequest, err)
		return
	}

	if err := s.viewer.ToggleStep(r.Context(), stepID, enabled); err != nil {
		s.commandResult(w, domain.CommandToggleStep, commandStatus(err), err)
		return
	}

	s.countCommand(domain.CommandToggleStep, "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
  <title>AugView</title>
  <style>
    body { font-family: sans-serif; display: flex; justify-content: center;
           align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: white; }
    .container { text-align: center; }
    h1 { color: #0ea5e9; }
  </style>
</head>
<body>
  <div class="container">
    <h1>AugView</h1>
    <p>The API is up. Connect a viewer client to <code>/ws</code> or fetch <code>/api/pipeline</code>.</p>
  </div>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

// commandResult logs a failed command, counts it, and writes the error
// marker response.
func (s *Server) commandResult(w http.ResponseWriter, command string, status int, err error) {
	s.logger.Warn("Command failed", "command", command, "status", status, "error", err)
	s.countCommand(command, "error")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) countCommand(command, status string) {
	if s.metrics != nil {
		s.metrics.RecordCommand(command, status)
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownParam), errors.Is(err, domain.ErrInvalidParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
