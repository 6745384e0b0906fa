// Package config provides configuration structures and loading logic for the
// augview server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/augview/augview/pkg/transform"
)

// Config holds the global configuration for the server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ViewerConfig holds configuration for the viewer instance.
type ViewerConfig struct {
	Name string `yaml:"name"`
	// Image is an optional source image loaded at startup and watched for
	// changes. When empty a generated gradient is used.
	Image string `yaml:"image"`
	// WatchImage re-runs the pipeline when the image file changes on disk.
	WatchImage bool `yaml:"watch_image"`
}

// PipelineConfig holds the ordered transform chain.
type PipelineConfig struct {
	Steps []StepConfig `yaml:"steps"`
}

// StepConfig declares one transform instance.
type StepConfig struct {
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// TelemetryConfig holds configuration for OpenTelemetry trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Viewer: ViewerConfig{
			Name: "augview",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("AUGVIEW_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("AUGVIEW_NAME"); val != "" {
		cfg.Viewer.Name = val
	}
	if val := os.Getenv("AUGVIEW_IMAGE"); val != "" {
		cfg.Viewer.Image = val
	}
	if val := os.Getenv("AUGVIEW_WATCH_IMAGE"); val == "true" {
		cfg.Viewer.WatchImage = true
	}
	if val := os.Getenv("AUGVIEW_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("AUGVIEW_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("AUGVIEW_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("AUGVIEW_LOG_PRETTY"); val == "true" {
		cfg.Logging.Pretty = true
	}
}

// Validate checks the configuration for basic correctness.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Viewer.Name == "" {
		return fmt.Errorf("viewer.name must not be empty")
	}
	known := make(map[string]struct{})
	for _, name := range transform.Names() {
		known[name] = struct{}{}
	}
	for i, step := range c.Pipeline.Steps {
		if step.Type == "" {
			return fmt.Errorf("pipeline.steps[%d]: type must not be empty", i)
		}
		if _, ok := known[step.Type]; !ok {
			return fmt.Errorf("pipeline.steps[%d]: unknown transform type %q", i, step.Type)
		}
	}
	return nil
}
