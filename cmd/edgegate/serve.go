package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgegate-io/edgegate/internal/controller"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Start the gateway agent",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the JSON configuration file",
			Aliases: []string{"c"},
		},
		&cli.StringFlag{
			Name:    "modules",
			Usage:   "Base path for relative connector module references",
			Aliases: []string{"m"},
		},
		&cli.StringFlag{
			Name:  "metrics-listen",
			Usage: "Address to serve Prometheus metrics on (e.g. :9090); disabled when empty",
		},
	},
	Action: serveAction,
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		return cli.Exit("The --config flag is required", 1)
	}

	handler, err := buildLogHandler(cmd)
	if err != nil {
		return cli.Exit(err, 1)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()

	ctrl, err := controller.New(
		controller.WithLogHandler(handler),
		controller.WithContext(ctx),
		controller.WithLoggerProvider(logging.NewProvider(handler)),
		controller.WithConfigFilePath(configPath),
		controller.WithModuleBasePath(cmd.String("modules")),
		controller.WithMetricsRegistry(registry),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create controller: %w", err), 1)
	}

	// Maintenance commands from the cloud stop the connectors; the host
	// process reacts here by ending the run.
	go func() {
		for ev := range ctrl.MaintenanceChan() {
			logger.Info("Maintenance command received, shutting down",
				"requestID", ev.RequestID, "command", ev.Command)
			cancel()
			return
		}
	}()

	if addr := cmd.String("metrics-listen"); addr != "" {
		go serveMetrics(ctx, logger, registry, addr)
	}

	super, err := supervisor.New(
		supervisor.WithRunnables(ctrl),
		supervisor.WithLogHandler(handler),
		supervisor.WithContext(ctx),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
	}
	if err := super.Run(); err != nil {
		return cli.Exit(fmt.Errorf("failed to run gateway: %w", err), 1)
	}

	logger.Info("Gateway shutdown complete")
	return nil
}

// serveMetrics exposes the registry on /metrics until ctx ends.
func serveMetrics(ctx context.Context, logger *slog.Logger, registry *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server failed", "error", err)
	}
}
