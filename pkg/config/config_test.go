package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "augview", cfg.Viewer.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Pipeline.Steps)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
viewer:
  name: demo
  image: sample.png
  watch_image: true
pipeline:
  steps:
    - type: horizontal_flip
      params:
        p: 1.0
    - type: blur
      params:
        blur_limit: 9
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "demo", cfg.Viewer.Name)
	assert.Equal(t, "sample.png", cfg.Viewer.Image)
	assert.True(t, cfg.Viewer.WatchImage)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)

	require.Len(t, cfg.Pipeline.Steps, 2)
	assert.Equal(t, "horizontal_flip", cfg.Pipeline.Steps[0].Type)
	assert.Equal(t, 1.0, cfg.Pipeline.Steps[0].Params["p"])
	assert.Equal(t, "blur", cfg.Pipeline.Steps[1].Type)
	assert.Equal(t, 9, cfg.Pipeline.Steps[1].Params["blur_limit"])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AUGVIEW_ADDR", ":7777")
	t.Setenv("AUGVIEW_LOG_LEVEL", "warn")
	t.Setenv("AUGVIEW_LOG_PRETTY", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Address)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestLoadRejectsUnknownTransform(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  steps:
    - type: sharpen_ultra
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sharpen_ultra")
}

func TestLoadRejectsMissingType(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  steps:
    - params:
        p: 0.5
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")
	_, err := Load(path)
	assert.Error(t, err)
}
