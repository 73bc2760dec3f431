// Package connector defines the bidirectional data-and-lifecycle contract
// every gateway connector implements, plus the shared Base and Polling
// building blocks concrete types embed.
package connector

import (
	"context"
	"fmt"
	"log/slog"
)

// Category classifies a connector by which side of the gateway it bridges.
type Category string

const (
	// CategoryCloud connectors talk to an upstream control/telemetry service.
	CategoryCloud Category = "cloud"

	// CategoryDevice connectors talk to a local sensor, actuator, or bus.
	CategoryDevice Category = "device"
)

// Valid reports whether the category is one of the two known values.
func (c Category) Valid() bool {
	return c == CategoryCloud || c == CategoryDevice
}

// ParseCategory converts a wire string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// EventKind discriminates the two event streams a connector emits.
type EventKind string

const (
	// KindData marks payloads produced by the connector's peer.
	KindData EventKind = "data"

	// KindLog marks log payloads destined for upstream delivery.
	KindLog EventKind = "log"
)

// Event is a single emission from a connector instance. Data payloads are
// opaque; log payloads are mappings.
type Event struct {
	Kind    EventKind
	Payload any
}

// Connector is the lifecycle and data contract. Implementations embed Base
// (or Polling) and supply lifecycle hooks.
type Connector interface {
	// String returns the connector id.
	String() string

	// Init starts the connector with the given config. On success the
	// instance transitions to active and the hook's payload is returned.
	Init(ctx context.Context, config map[string]any, requestID string) (map[string]any, error)

	// Stop shuts the connector down. The instance is inactive after Stop
	// returns, whether or not the hook succeeded.
	Stop(ctx context.Context, requestID string) (map[string]any, error)

	// AddData enqueues an outbound payload.
	AddData(payload map[string]any, requestID string) error

	// AddLogData enqueues an outbound log payload. The default is a no-op;
	// cloud connector types override it.
	AddLogData(payload map[string]any) error

	// Active reports whether the instance has completed a successful Init
	// and not yet been stopped.
	Active() bool

	// SetLogger attaches the logger injected by the factory.
	SetLogger(logger *slog.Logger)

	// Events returns the instance's event stream. The channel is owned by
	// the instance and is never closed; consumers stop via their own
	// context.
	Events() <-chan Event
}
