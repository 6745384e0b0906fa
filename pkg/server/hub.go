package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/augview/augview/pkg/domain"
	"github.com/augview/augview/pkg/viewer"
)

const (
	writeTimeout    = 10 * time.Second
	clientQueueSize = 8
)

// Hub owns the persistent channel clients. Every viewer update is
// broadcast as a pipeline_update frame to all of them; inbound frames carry
// commands that are applied to the viewer. A client too slow to drain its
// queue is dropped — it will reconnect and receive the current snapshot.
type Hub struct {
	viewer   *viewer.Viewer
	logger   *slog.Logger
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub bound to the viewer. The hub registers itself as an
// update subscriber.
func NewHub(v *viewer.Viewer, logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		viewer:  v,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			// The UI is served from arbitrary dev hosts, as with the CORS
			// allow-all on the REST side.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*hubClient]struct{}),
	}
	v.OnUpdate(h.Broadcast)
	return h
}

// Broadcast fans a snapshot out to every connected client.
func (h *Hub) Broadcast(p domain.Pipeline) {
	frame, err := marshalUpdate(p)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot broadcast", "error", err)
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow client: drop it rather than stall the broadcast.
			h.dropLocked(c)
		}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordBroadcast()
	}
}

func marshalUpdate(p domain.Pipeline) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(domain.Envelope{
		Type: domain.MessageTypePipelineUpdate,
		Data: data,
	})
}

// ServeHTTP upgrades the connection, sends the current snapshot, and
// processes inbound commands until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Channel upgrade failed", "error", err)
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientQueueSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	h.logger.Info("Channel client connected", "remote", conn.RemoteAddr())

	// Initial state so a freshly connected client converges immediately.
	if frame, err := marshalUpdate(h.viewer.Pipeline()); err == nil {
		select {
		case c.send <- frame:
		default:
		}
	}

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)

	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked removes a client and releases its writer. Safe to call twice.
func (h *Hub) dropLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	_ = c.conn.Close()
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *hubClient) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("Channel client read ended", "error", err)
			}
			return
		}

		var cmd domain.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.logger.Warn("Dropping malformed command frame", "error", err)
			continue
		}
		h.apply(ctx, cmd)
	}
}

// apply executes one inbound command against the viewer. Errors are logged
// and counted; the client converges from the next broadcast either way.
func (h *Hub) apply(ctx context.Context, cmd domain.Command) {
	var err error
	switch cmd.Type {
	case domain.CommandUpdateParam:
		err = h.viewer.UpdateStepParam(ctx, cmd.StepID, cmd.ParamName, cmd.Value)
	case domain.CommandToggleStep:
		enabled := cmd.Enabled != nil && *cmd.Enabled
		err = h.viewer.ToggleStep(ctx, cmd.StepID, enabled)
	case domain.CommandRerun:
		err = h.viewer.Rerun(ctx)
		if errors.Is(err, domain.ErrNoImage) {
			err = nil
		}
	default:
		// Unknown command types are ignored.
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
		h.logger.Warn("Channel command failed", "command", cmd.Type, "step_id", cmd.StepID, "error", err)
	}
	if h.metrics != nil {
		h.metrics.RecordCommand(cmd.Type, status)
	}
}
