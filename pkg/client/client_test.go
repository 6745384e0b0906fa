package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augview/augview/pkg/domain"
	"github.com/augview/augview/pkg/server"
	"github.com/augview/augview/pkg/transform"
	"github.com/augview/augview/pkg/viewer"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080/ws"},
		{in: "https://augview.example.com", want: "wss://augview.example.com/ws"},
		{in: "ws://127.0.0.1:8080", want: "ws://127.0.0.1:8080/ws"},
		{in: "http://host/some/path", want: "ws://host/ws"},
		{in: "ftp://host", wantErr: true},
	}
	for _, tt := range tests {
		got, err := channelURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

// startTestStack runs a real server (viewer + one grayscale step) and a
// client connected to it.
func startTestStack(t *testing.T) (*Client, domain.Pipeline) {
	t.Helper()

	v := viewer.New("e2e", nil)
	tr, err := transform.New("grayscale", map[string]any{"p": 1.0})
	require.NoError(t, err)
	v.AddTransform(tr)
	require.NoError(t, v.Process(context.Background(), viewer.GradientImage(32, 32)))

	srv := server.New(v, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(Config{ServerURL: ts.URL, DebounceInterval: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = c.Run(ctx) }()

	waitStatus(t, c.transport, StatusConnected)
	p := waitSnapshot(t, c, func(p domain.Pipeline) bool { return len(p.Steps) == 1 })
	return c, p
}

// waitSnapshot polls the store until the predicate holds.
func waitSnapshot(t *testing.T, c *Client, ok func(domain.Pipeline) bool) domain.Pipeline {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if p, _, populated := c.Store().Snapshot(); populated && ok(p) {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a matching snapshot")
	return domain.Pipeline{}
}

func TestClientInitialLoad(t *testing.T) {
	_, p := startTestStack(t)

	assert.Equal(t, "e2e", p.Name)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "Grayscale", p.Steps[0].Name)
	assert.NotEmpty(t, p.OriginalImage)
	assert.NotEmpty(t, p.FinalImage)
}

func TestClientParamEditRoundTrip(t *testing.T) {
	c, p := startTestStack(t)
	stepID := p.Steps[0].ID
	before := c.Store().Generation()

	// Slider drag: many edits, one settled commit, server echo replaces the
	// whole snapshot.
	for _, v := range []float64{0.9, 0.7, 0.5, 0.25} {
		c.SetParam(stepID, "p", v)
	}
	pending, ok := c.PendingParam(stepID, "p")
	require.True(t, ok)
	assert.Equal(t, 0.25, pending)

	p = waitSnapshot(t, c, func(p domain.Pipeline) bool {
		step, ok := p.FindStep(stepID)
		return ok && step.Params["p"] == 0.25
	})
	assert.Greater(t, c.Store().Generation(), before)

	_, ok = c.PendingParam(stepID, "p")
	assert.False(t, ok, "the committed edit must leave the buffer")
	step, _ := p.FindStep(stepID)
	require.NotNil(t, step.Probability)
	assert.Equal(t, 0.25, *step.Probability)
}

func TestClientFlushCommitsWithoutWaiting(t *testing.T) {
	c, p := startTestStack(t)
	stepID := p.Steps[0].ID

	buf := NewEditBuffer(time.Hour, c.commitParam)
	buf.Set(stepID, "p", 0.4)
	buf.Flush(stepID, "p")

	waitSnapshot(t, c, func(p domain.Pipeline) bool {
		step, ok := p.FindStep(stepID)
		return ok && step.Params["p"] == 0.4
	})
}

func TestClientToggleRoundTrip(t *testing.T) {
	c, p := startTestStack(t)
	stepID := p.Steps[0].ID

	require.NoError(t, c.Toggle(context.Background(), stepID, false))

	p = waitSnapshot(t, c, func(p domain.Pipeline) bool {
		step, ok := p.FindStep(stepID)
		return ok && !step.Enabled
	})
	step, _ := p.FindStep(stepID)
	require.NotNil(t, step.Applied)
	assert.False(t, *step.Applied, "a disabled step cannot have fired")
}

func TestClientRerunReplacesSnapshot(t *testing.T) {
	c, _ := startTestStack(t)
	before := c.Store().Generation()

	require.NoError(t, c.Rerun(context.Background()))

	assert.Greater(t, c.Store().Generation(), before)
}

func TestClientUpdatesStreamCoalesces(t *testing.T) {
	c, p := startTestStack(t)
	stepID := p.Steps[0].ID

	// Drain whatever is queued, then provoke one more update.
	for {
		select {
		case <-c.Updates():
			continue
		default:
		}
		break
	}
	require.NoError(t, c.Toggle(context.Background(), stepID, false))

	select {
	case got := <-c.Updates():
		assert.Equal(t, p.ID, got.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting on the updates stream")
	}
}
