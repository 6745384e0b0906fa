package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildServeConfigDefaults(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := buildServeConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "augview", cfg.Viewer.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Viewer.WatchImage)
}

func TestBuildServeConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
logging:
  level: debug
`), 0o600))

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--addr", ":7000",
		"--image", "img.png",
		"--watch",
		"--log-level", "error",
	}))

	cfg, err := buildServeConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address, "flags beat the file")
	assert.Equal(t, "img.png", cfg.Viewer.Image)
	assert.True(t, cfg.Viewer.WatchImage)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestBuildServeConfigWatchNeedsImage(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--watch"}))

	_, err := buildServeConfig(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--watch")
}

func TestBuildViewerFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  steps:
    - type: grayscale
      params:
        p: 1.0
    - type: blur
      params:
        blur_limit: 9
`), 0o600))

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	cfg, err := buildServeConfig(cmd)
	require.NoError(t, err)

	v, err := buildViewer(context.Background(), cfg, nil)
	require.NoError(t, err)

	p := v.Pipeline()
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "Grayscale", p.Steps[0].Name)
	assert.Equal(t, "Blur", p.Steps[1].Name)
	assert.Equal(t, 9, p.Steps[1].Params["blur_limit"])
	assert.NotEmpty(t, p.FinalImage, "the gradient fallback is processed at startup")
}

func TestBuildViewerRejectsBadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  steps:
    - type: blur
      params:
        bogus: 1
`), 0o600))

	cmd := newServeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
	cfg, err := buildServeConfig(cmd)
	require.NoError(t, err)

	_, err = buildViewer(context.Background(), cfg, nil)
	assert.Error(t, err)
}
