package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/augview/augview/pkg/domain"
)

// Config holds client configuration.
type Config struct {
	// ServerURL is the server's base URL, e.g. http://127.0.0.1:8080.
	ServerURL string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// DebounceInterval overrides the edit-buffer quiet period.
	DebounceInterval time.Duration
	// RequestTimeout bounds fallback round-trips.
	RequestTimeout time.Duration
}

// Client composes the transport, dispatcher, edit buffer and store into the
// synchronization engine a renderer sits on top of.
type Client struct {
	logger     *slog.Logger
	transport  *Transport
	rest       *RESTClient
	dispatcher *Dispatcher
	buffer     *EditBuffer
	store      *Store
	timeout    time.Duration
	updates    chan domain.Pipeline
}

// New builds a client for the given server. Run must be called to connect.
func New(cfg Config) (*Client, error) {
	wsURL, err := channelURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &Client{
		logger:    logger,
		transport: NewTransport(wsURL, logger),
		rest:      NewRESTClient(cfg.ServerURL, timeout),
		store:     NewStore(),
		timeout:   timeout,
		updates:   make(chan domain.Pipeline, 1),
	}
	c.dispatcher = NewDispatcher(c.transport, c.rest, c.store, logger)
	c.buffer = NewEditBuffer(cfg.DebounceInterval, c.commitParam)
	return c, nil
}

// channelURL derives the persistent channel endpoint from the base URL.
func channelURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("client: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: unsupported server url scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Run connects and drives the inbound loop until ctx is cancelled. Inbound
// snapshots replace the store strictly in arrival order.
func (c *Client) Run(ctx context.Context) error {
	// Initial load over REST; if the server is not up yet the channel's
	// first snapshot will populate the store instead.
	loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
	if p, err := c.rest.Pipeline(loadCtx); err != nil {
		c.logger.Warn("Initial snapshot fetch failed", "error", err)
	} else {
		c.store.Replace(p)
		c.publish(p)
	}
	cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.transport.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case p := <-c.transport.Snapshots():
				c.store.Replace(p)
				c.publish(p)
			}
		}
	})

	err := g.Wait()
	c.buffer.Close()
	return err
}

// publish hands the latest snapshot to the updates channel, coalescing when
// the consumer lags: the renderer only ever needs the newest state.
func (c *Client) publish(p domain.Pipeline) {
	for {
		select {
		case c.updates <- p:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}

// Updates returns a stream of snapshots for re-rendering. Intermediate
// snapshots may be coalesced; the store always holds the latest.
func (c *Client) Updates() <-chan domain.Pipeline {
	return c.updates
}

// Store returns the pipeline store.
func (c *Client) Store() *Store {
	return c.store
}

// Status returns the persistent channel's connectivity state.
func (c *Client) Status() Status {
	return c.transport.Status()
}

// Busy reports whether a fallback round-trip is in flight.
func (c *Client) Busy() bool {
	return c.dispatcher.Busy()
}

// SetParam records a continuous-field edit; it is committed after the quiet
// period or on FlushParam, whichever comes first.
func (c *Client) SetParam(stepID, paramName string, value any) {
	c.buffer.Set(stepID, paramName, value)
}

// SetRangeParam records an edit to a range field; the pair commits whole on
// FlushParam only.
func (c *Client) SetRangeParam(stepID, paramName string, low, high float64) {
	c.buffer.SetRange(stepID, paramName, low, high)
}

// FlushParam commits a field immediately (release, blur, confirm).
func (c *Client) FlushParam(stepID, paramName string) {
	c.buffer.Flush(stepID, paramName)
}

// PendingParam returns the uncommitted local value for a field, for the
// local-only view.
func (c *Client) PendingParam(stepID, paramName string) (any, bool) {
	return c.buffer.Pending(stepID, paramName)
}

// Toggle flips a step's enablement immediately, without buffering.
func (c *Client) Toggle(ctx context.Context, stepID string, enabled bool) error {
	return c.dispatcher.ToggleStep(ctx, stepID, enabled)
}

// Rerun asks the server to re-execute with fresh random draws and applies
// the returned snapshot.
func (c *Client) Rerun(ctx context.Context) error {
	p, err := c.rest.Rerun(ctx)
	if err != nil {
		return err
	}
	c.store.Replace(p)
	c.publish(p)
	return nil
}

// Upload sends a new source image and applies the returned snapshot.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) error {
	p, err := c.rest.Upload(ctx, filename, file)
	if err != nil {
		return err
	}
	c.store.Replace(p)
	c.publish(p)
	return nil
}

// commitParam is the edit buffer's commit sink: it dispatches the settled
// value, logging (not retrying) failures — the next edit supersedes.
func (c *Client) commitParam(stepID, paramName string, value any) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.dispatcher.UpdateParam(ctx, stepID, paramName, value); err != nil {
		c.logger.Error("Parameter commit failed", "step_id", stepID, "param", paramName, "error", err)
	}
}
