package client

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/augview/augview/pkg/domain"
)

// Dispatcher turns user intents into transport messages. The persistent
// channel is always attempted first; when it is unavailable the command
// goes over REST, and a successful fallback write is followed by a fresh
// snapshot fetch because no push will come.
type Dispatcher struct {
	transport *Transport
	rest      *RESTClient
	store     *Store
	logger    *slog.Logger
	busy      atomic.Bool
}

// NewDispatcher wires a dispatcher to its channels and the store the
// convergence fetch feeds.
func NewDispatcher(transport *Transport, rest *RESTClient, store *Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{transport: transport, rest: rest, store: store, logger: logger}
}

// Busy reports whether a fallback round-trip is in flight, for the UI's
// busy indicator.
func (d *Dispatcher) Busy() bool {
	return d.busy.Load()
}

// UpdateParam sends a parameter change. Continuous-field edits should reach
// this only through the EditBuffer; discrete fields call it directly.
func (d *Dispatcher) UpdateParam(ctx context.Context, stepID, paramName string, value any) error {
	err := d.transport.Send(domain.UpdateParam(stepID, paramName, value))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotConnected) {
		d.logger.Warn("Channel send failed, using fallback", "error", err)
	}

	return d.fallback(ctx, "update_param", func(ctx context.Context) error {
		return d.rest.UpdateParams(ctx, stepID, map[string]any{paramName: value})
	})
}

// ToggleStep sends an enablement change. Toggles are binary and
// low-frequency, so they are never buffered or debounced.
func (d *Dispatcher) ToggleStep(ctx context.Context, stepID string, enabled bool) error {
	err := d.transport.Send(domain.ToggleStep(stepID, enabled))
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotConnected) {
		d.logger.Warn("Channel send failed, using fallback", "error", err)
	}

	return d.fallback(ctx, "toggle_step", func(ctx context.Context) error {
		return d.rest.Toggle(ctx, stepID, enabled)
	})
}

// fallback performs a REST write and, on success, a convergence fetch. A
// failed command is logged and not retried — the busy flag is cleared so
// the user can try again.
func (d *Dispatcher) fallback(ctx context.Context, kind string, write func(context.Context) error) error {
	d.busy.Store(true)
	defer d.busy.Store(false)

	if err := write(ctx); err != nil {
		d.logger.Error("Fallback command failed", "command", kind, "error", err)
		return err
	}

	p, err := d.rest.Pipeline(ctx)
	if err != nil {
		d.logger.Error("Convergence fetch failed after fallback write", "command", kind, "error", err)
		return err
	}
	d.store.Replace(p)
	return nil
}
