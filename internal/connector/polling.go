package connector

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProcessFunc is invoked on every poll tick.
type ProcessFunc func(ctx context.Context)

// Polling is a connector base for peripherals that are read on a fixed
// interval. Its config requires pollFrequency (milliseconds, positive). A
// subsequent Init reschedules the poll loop; Stop cancels it.
type Polling struct {
	*Base
	process ProcessFunc

	pollMu     sync.Mutex
	cancelPoll context.CancelFunc
}

// NewPolling creates a polling connector that invokes process on each tick.
func NewPolling(id string, process ProcessFunc) *Polling {
	p := &Polling{
		Base:    New(id),
		process: process,
	}
	p.SetHooks(p.start, p.stop)
	return p
}

func (p *Polling) start(ctx context.Context, config map[string]any) (map[string]any, error) {
	freq, err := pollFrequency(config)
	if err != nil {
		return nil, err
	}

	p.pollMu.Lock()
	if p.cancelPoll != nil {
		p.cancelPoll()
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	p.cancelPoll = cancel
	p.pollMu.Unlock()

	go p.loop(pollCtx, freq)
	p.Logger().Debug("Polling scheduled", "pollFrequency", freq)
	return map[string]any{}, nil
}

func (p *Polling) stop(ctx context.Context) (map[string]any, error) {
	p.pollMu.Lock()
	if p.cancelPoll != nil {
		p.cancelPoll()
		p.cancelPoll = nil
	}
	p.pollMu.Unlock()
	return map[string]any{}, nil
}

func (p *Polling) loop(ctx context.Context, freq time.Duration) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.process(ctx)
		}
	}
}

// pollFrequency extracts the pollFrequency option, in milliseconds. JSON
// numbers decode as float64; integer types are accepted for configs built in
// code.
func pollFrequency(config map[string]any) (time.Duration, error) {
	raw, ok := config["pollFrequency"]
	if !ok {
		return 0, fmt.Errorf("%w: pollFrequency is required", ErrInvalidConfig)
	}

	var ms float64
	switch v := raw.(type) {
	case float64:
		ms = v
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	default:
		return 0, fmt.Errorf("%w: pollFrequency must be a number, got %T", ErrInvalidConfig, raw)
	}

	if ms <= 0 {
		return 0, fmt.Errorf("%w: pollFrequency must be positive, got %v", ErrInvalidConfig, ms)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
