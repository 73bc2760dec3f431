package logging

import "log/slog"

// Provider hands out a logger scoped to a single connector id. Connector
// implementations receive their logger through SetLogger during construction.
type Provider interface {
	GetLogger(id string) *slog.Logger
}

type handlerProvider struct {
	handler slog.Handler
}

// NewProvider returns a Provider that derives per-connector loggers from the
// given handler. Each logger carries the connector id as an attribute.
func NewProvider(handler slog.Handler) Provider {
	if handler == nil {
		handler = slog.DiscardHandler
	}
	return &handlerProvider{handler: handler}
}

func (p *handlerProvider) GetLogger(id string) *slog.Logger {
	return slog.New(p.handler).With("connector", id)
}

// NopLogger returns a logger that discards everything. Used when no Provider
// is configured.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
