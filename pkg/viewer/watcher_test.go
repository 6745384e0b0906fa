package viewer

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augview/augview/pkg/domain"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, GradientImage(w, h)))
	require.NoError(t, f.Close())
}

func TestWatcherReprocessesOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.png")
	writePNG(t, path, 16, 16)

	v := New("watched", nil)
	updates := make(chan domain.Pipeline, 8)
	v.OnUpdate(func(p domain.Pipeline) { updates <- p })

	w, err := NewWatcher(path, v, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writePNG(t, path, 24, 24)

	select {
	case p := <-updates:
		assert.Equal(t, domain.Size{24, 24}, p.OriginalSize)
	case <-time.After(3 * time.Second):
		t.Fatal("no pipeline update after file change")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.png")
	writePNG(t, path, 16, 16)

	v := New("watched", nil)
	updates := make(chan domain.Pipeline, 8)
	v.OnUpdate(func(p domain.Pipeline) { updates <- p })

	w, err := NewWatcher(path, v, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	writePNG(t, filepath.Join(dir, "other.png"), 8, 8)

	select {
	case <-updates:
		t.Fatal("sibling file change must not trigger a reload")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestNewWatcherRejectsMissingDirectory(t *testing.T) {
	v := New("watched", nil)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "source.png"), v, nil)
	require.Error(t, err)
}
