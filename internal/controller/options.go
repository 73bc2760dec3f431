package controller

import (
	"context"
	"log/slog"

	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/connector/registry"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Controller during New.
type Option func(*Controller)

// WithLogHandler sets a custom slog handler for the controller. The handler
// is also the default sink for per-request log collectors.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Controller) {
		if handler != nil {
			c.handler = handler
			c.logger = slog.New(handler).WithGroup("controller")
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
			c.handler = logger.Handler()
		}
	}
}

// WithContext sets the parent context governing the controller's lifetime.
// Slot pipelines and event consumers stop when it is canceled.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		if ctx != nil {
			c.parentCtx = ctx
		}
	}
}

// WithLoggerProvider sets the provider that hands each connector instance
// its scoped logger.
func WithLoggerProvider(provider logging.Provider) Option {
	return func(c *Controller) {
		c.provider = provider
	}
}

// WithLoader replaces the connector module loader. Tests use this to inject
// spy constructors.
func WithLoader(loader registry.Loader) Option {
	return func(c *Controller) {
		c.loader = loader
	}
}

// WithModuleBasePath sets the directory that relative connector module
// references resolve against.
func WithModuleBasePath(basePath string) Option {
	return func(c *Controller) {
		c.moduleBasePath = basePath
	}
}

// WithConfigFilePath sets the config document the Run boot sequence loads.
// Init calls override it.
func WithConfigFilePath(path string) Option {
	return func(c *Controller) {
		c.configFilePath = path
	}
}

// WithMetricsRegistry registers the controller metrics against the given
// registerer. Without it, metrics go to a throwaway registry.
func WithMetricsRegistry(registerer prometheus.Registerer) Option {
	return func(c *Controller) {
		c.registerer = registerer
	}
}

// WithWriterOptions appends options for the config writer created at Init.
func WithWriterOptions(opts ...config.WriterOption) Option {
	return func(c *Controller) {
		c.writerOpts = append(c.writerOpts, opts...)
	}
}
