package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/augview/augview/pkg/domain"
)

// ReconnectDelay is the fixed pause between reconnection attempts. Retries
// continue indefinitely: no backoff, no cap.
const ReconnectDelay = 3 * time.Second

// Status is the connectivity state of the persistent channel.
type Status int32

// Connectivity states. The machine cycles
// Connecting → Connected → Disconnected → Connecting … for the life of the
// client.
const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Transport maintains the persistent websocket channel to the server. It
// delivers inbound pipeline snapshots strictly in arrival order and exposes
// Send for outbound commands; Send fails fast when the channel is not
// connected so the caller can fall back to REST.
type Transport struct {
	url       string
	dialer    *websocket.Dialer
	logger    *slog.Logger
	delay     time.Duration
	status    atomic.Int32
	snapshots chan domain.Pipeline

	mu   sync.Mutex // serializes writes; one outbound frame in flight at a time
	conn *websocket.Conn
}

// NewTransport creates a transport for the given websocket URL
// (ws://host/ws). Run must be called to connect.
func NewTransport(url string, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		url:       url,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
		delay:     ReconnectDelay,
		snapshots: make(chan domain.Pipeline),
	}
	t.status.Store(int32(StatusConnecting))
	return t
}

// Status returns the current connectivity state.
func (t *Transport) Status() Status {
	return Status(t.status.Load())
}

// Snapshots returns the inbound snapshot stream. Snapshots are delivered in
// arrival order; the consumer must drain the channel for reads to proceed.
func (t *Transport) Snapshots() <-chan domain.Pipeline {
	return t.snapshots
}

// Send writes a command frame on the persistent channel. The connection
// state is re-checked under the write lock immediately before the write,
// since the channel can drop between the caller's decision and the send;
// domain.ErrNotConnected tells the caller to use the fallback channel.
func (t *Transport) Send(cmd domain.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status() != StatusConnected || t.conn == nil {
		return domain.ErrNotConnected
	}
	if err := t.conn.WriteJSON(cmd); err != nil {
		return err
	}
	return nil
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. Every
// failure path degrades to "disconnected, retry after the fixed delay" —
// the transport never gives up.
func (t *Transport) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.status.Store(int32(StatusConnecting))
		conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
		if err != nil {
			t.logger.Warn("Channel connect failed", "url", t.url, "error", err)
			t.status.Store(int32(StatusDisconnected))
			if err := t.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		t.setConn(conn)
		t.status.Store(int32(StatusConnected))
		t.logger.Info("Channel connected", "url", t.url)

		// Unblock the pending read when the context is cancelled.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		t.readLoop(ctx, conn)
		stop()

		t.setConn(nil)
		t.status.Store(int32(StatusDisconnected))
		_ = conn.Close()
		t.logger.Warn("Channel disconnected, will retry", "delay", t.delay)

		if err := t.sleep(ctx); err != nil {
			return err
		}
	}
}

// readLoop consumes frames until the connection breaks or ctx is cancelled.
// Each pipeline_update fully replaces downstream state before the next frame
// is read, so two in-flight replacements can never interleave.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Warn("Channel read failed", "error", err)
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}
		if env.Type != domain.MessageTypePipelineUpdate {
			// The state update is the only inbound type we understand.
			continue
		}

		var p domain.Pipeline
		if err := json.Unmarshal(env.Data, &p); err != nil {
			t.logger.Warn("Dropping malformed snapshot payload", "error", err)
			continue
		}

		select {
		case t.snapshots <- p:
		case <-ctx.Done():
			return
		}
	}
}

func (t *Transport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
}

func (t *Transport) sleep(ctx context.Context) error {
	timer := time.NewTimer(t.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
