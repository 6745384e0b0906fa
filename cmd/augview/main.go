// Package main is the entry point for the augview binary.
// It serves an augmentation pipeline over HTTP and a persistent channel, and
// can export a pipeline's layout graph from a running server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/augview/augview/pkg/client"
	"github.com/augview/augview/pkg/config"
	"github.com/augview/augview/pkg/layout"
	"github.com/augview/augview/pkg/logging"
	"github.com/augview/augview/pkg/server"
	"github.com/augview/augview/pkg/telemetry"
	"github.com/augview/augview/pkg/transform"
	"github.com/augview/augview/pkg/viewer"
)

const (
	defaultAddr     = ":8080"
	defaultLogLevel = "info"

	gradientWidth  = 640
	gradientHeight = 480

	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for augview.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "augview",
		Short: "Interactive augmentation pipeline viewer",
		Long: `Serves an image augmentation pipeline over HTTP and a persistent channel.

Clients receive the full pipeline state after every change: each step's
parameters and its input/output images, ready for side-by-side inspection.

Example:
  augview serve --config pipeline.yaml --image sample.png --watch`,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDrawCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pipeline server",
		RunE:  runServe,
	}

	serveCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	serveCmd.Flags().StringP("addr", "a", "", "Listen address (default "+defaultAddr+")")
	serveCmd.Flags().StringP("image", "i", "", "Source image file (default: generated gradient)")
	serveCmd.Flags().BoolP("watch", "w", false, "Re-run the pipeline when the source image changes")
	serveCmd.Flags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	serveCmd.Flags().Bool("pretty", false, "Human-readable log output")

	return serveCmd
}

// buildServeConfig merges the config file with CLI flag overrides.
func buildServeConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Address = addr
	}
	if image, _ := cmd.Flags().GetString("image"); image != "" {
		cfg.Viewer.Image = image
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		cfg.Viewer.WatchImage = true
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		cfg.Logging.Pretty = true
	}

	if cfg.Viewer.WatchImage && cfg.Viewer.Image == "" {
		return nil, fmt.Errorf("--watch requires a source image file")
	}

	return cfg, nil
}

// buildViewer assembles the transform chain and loads the initial image.
func buildViewer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*viewer.Viewer, error) {
	v := viewer.New(cfg.Viewer.Name, logger)

	for i, step := range cfg.Pipeline.Steps {
		tr, err := transform.New(step.Type, step.Params)
		if err != nil {
			return nil, fmt.Errorf("pipeline step %d: %w", i, err)
		}
		v.AddTransform(tr)
	}

	if cfg.Viewer.Image != "" {
		f, err := os.Open(cfg.Viewer.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to open source image: %w", err)
		}
		defer f.Close()
		if err := v.LoadImage(ctx, f); err != nil {
			return nil, fmt.Errorf("failed to load source image: %w", err)
		}
		return v, nil
	}

	if err := v.Process(ctx, viewer.GradientImage(gradientWidth, gradientHeight)); err != nil {
		return nil, fmt.Errorf("failed to process gradient image: %w", err)
	}
	return v, nil
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "augview",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("Failed to flush traces", "error", err)
		}
	}()

	v, err := buildViewer(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build viewer", "error", err)
		return err
	}

	srv := server.New(v, logger, server.NewMetrics())
	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Starting augview",
		"addr", cfg.Server.Address,
		"steps", len(cfg.Pipeline.Steps),
		"image", cfg.Viewer.Image,
		"watch", cfg.Viewer.WatchImage,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Viewer.WatchImage {
		w, err := viewer.NewWatcher(cfg.Viewer.Image, v, logger)
		if err != nil {
			logger.Error("Failed to start image watcher", "error", err)
			return err
		}
		g.Go(func() error {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}

func newDrawCmd() *cobra.Command {
	drawCmd := &cobra.Command{
		Use:   "draw",
		Short: "Export a running server's pipeline layout as a DOT graph",
		RunE:  runDraw,
	}

	drawCmd.Flags().StringP("server", "s", "http://127.0.0.1:8080", "Server base URL")
	drawCmd.Flags().StringP("out", "o", "pipeline.dot", "Output file")

	return drawCmd
}

// runDraw fetches the current pipeline, computes its layout, and writes the
// node/edge graph in DOT format.
func runDraw(cmd *cobra.Command, _ []string) error {
	serverURL, err := cmd.Flags().GetString("server")
	if err != nil {
		return fmt.Errorf("failed to get server flag: %w", err)
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), client.DefaultRequestTimeout)
	defer cancel()

	rest := client.NewRESTClient(serverURL, 0)
	p, err := rest.Pipeline(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pipeline: %w", err)
	}

	nodes, edges := layout.Compute(p, layout.NewOverrideStore())

	drawer := layout.NewDOTDrawer()
	if err := drawer.Add(nodes, edges); err != nil {
		return err
	}
	if err := drawer.DrawFile(out); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d nodes, %d edges)\n", out, len(nodes), len(edges))
	return nil
}
