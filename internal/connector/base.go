package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edgegate-io/edgegate/internal/connector/finitestate"
)

// eventBuffer is the per-instance event channel capacity. Emissions beyond
// this while no consumer is attached are dropped.
const eventBuffer = 64

// StartHook is the subtype-supplied start routine. The returned payload is
// surfaced as the Init completion result.
type StartHook func(ctx context.Context, config map[string]any) (map[string]any, error)

// StopHook is the subtype-supplied stop routine.
type StopHook func(ctx context.Context) (map[string]any, error)

// Base carries the shared connector state: id, lifecycle machine, outbound
// buffer, event stream, and injected logger. Concrete types embed it and
// register hooks via SetHooks.
type Base struct {
	id     string
	fsm    finitestate.Machine
	events chan Event

	mu        sync.Mutex
	logger    *slog.Logger
	startHook StartHook
	stopHook  StopHook
	buffer    []map[string]any
}

// New creates a Base in the inactive state with no hooks attached.
func New(id string) *Base {
	machine, err := finitestate.New(slog.DiscardHandler)
	if err != nil {
		// The two-state transition table is static; construction cannot fail.
		panic(fmt.Sprintf("connector fsm: %v", err))
	}
	return &Base{
		id:     id,
		fsm:    machine,
		events: make(chan Event, eventBuffer),
		logger: slog.New(slog.DiscardHandler).With("connector", id),
	}
}

// SetHooks registers the subtype lifecycle hooks. Either may be nil, in
// which case the corresponding lifecycle call fails with ErrNotImplemented.
func (b *Base) SetHooks(start StartHook, stop StopHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startHook = start
	b.stopHook = stop
}

// String returns the connector id.
func (b *Base) String() string {
	return b.id
}

// SetLogger attaches the factory-injected logger.
func (b *Base) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Logger returns the current logger, for use by embedding types.
func (b *Base) Logger() *slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logger
}

// Init validates the config, runs the start hook, and on success moves the
// instance to active. A failed hook leaves the instance inactive.
func (b *Base) Init(ctx context.Context, config map[string]any, requestID string) (map[string]any, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config must be a mapping", ErrInvalidConfig)
	}

	b.mu.Lock()
	hook := b.startHook
	logger := b.logger
	b.mu.Unlock()

	if hook == nil {
		return nil, fmt.Errorf("init %s: %w", b.id, ErrNotImplemented)
	}

	result, err := hook(ctx, config)
	if err != nil {
		if stateErr := b.fsm.SetState(finitestate.StatusInactive); stateErr != nil {
			logger.Error("Failed to reset lifecycle state", "error", stateErr)
		}
		return nil, err
	}

	if err := b.fsm.SetState(finitestate.StatusActive); err != nil {
		return nil, fmt.Errorf("lifecycle transition failed: %w", err)
	}
	logger.Debug("Connector started", "requestID", requestID)
	return result, nil
}

// Stop runs the stop hook. The instance is inactive afterwards regardless of
// the hook's outcome.
func (b *Base) Stop(ctx context.Context, requestID string) (map[string]any, error) {
	b.mu.Lock()
	hook := b.stopHook
	logger := b.logger
	b.mu.Unlock()

	defer func() {
		if err := b.fsm.SetState(finitestate.StatusInactive); err != nil {
			logger.Error("Failed to reset lifecycle state", "error", err)
		}
	}()

	if hook == nil {
		return nil, fmt.Errorf("stop %s: %w", b.id, ErrNotImplemented)
	}

	result, err := hook(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("Connector stopped", "requestID", requestID)
	return result, nil
}

// AddData appends an outbound payload to the internal buffer.
func (b *Base) AddData(payload map[string]any, requestID string) error {
	if payload == nil {
		return fmt.Errorf("%w: payload must be a mapping", ErrInvalidPayload)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer = append(b.buffer, payload)
	return nil
}

// AddLogData is a no-op by default. Cloud connector types override it to
// queue log payloads for upstream delivery.
func (b *Base) AddLogData(payload map[string]any) error {
	return nil
}

// Active reports whether the instance is in the active lifecycle state.
func (b *Base) Active() bool {
	return b.fsm.GetState() == finitestate.StatusActive
}

// Events returns the instance's event stream.
func (b *Base) Events() <-chan Event {
	return b.events
}

// Emit publishes an event. Emissions are dropped when the stream buffer is
// full so a detached instance cannot wedge its producer.
func (b *Base) Emit(kind EventKind, payload any) {
	select {
	case b.events <- Event{Kind: kind, Payload: payload}:
	default:
		b.Logger().Warn("Event stream full, dropping event", "kind", kind)
	}
}

// Drain removes and returns all buffered outbound payloads.
func (b *Base) Drain() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buffer
	b.buffer = nil
	return out
}

// Buffered returns the number of queued outbound payloads.
func (b *Base) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
