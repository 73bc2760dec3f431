// Package mocks provides a scriptable connector for controller and pipeline
// tests: it counts lifecycle and data calls and can be told to fail either
// hook.
package mocks

import (
	"context"
	"sync/atomic"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// Verify the spy satisfies the contract.
var _ connector.Connector = (*Spy)(nil)

// Spy is a connector whose hooks count invocations and fail on demand.
type Spy struct {
	*connector.Base

	InitCalls atomic.Int64
	StopCalls atomic.Int64
	DataCalls atomic.Int64
	LogCalls  atomic.Int64

	// FailInit / FailStop make the corresponding hook return the error.
	FailInit atomic.Pointer[error]
	FailStop atomic.Pointer[error]

	// InitGate, when non-nil, blocks the start hook until closed. Used to
	// hold an init in flight while further steps queue behind it.
	InitGate chan struct{}
}

// New creates a spy connector with succeeding hooks.
func New(id string) *Spy {
	s := &Spy{Base: connector.New(id)}
	s.SetHooks(s.start, s.stop)
	return s
}

func (s *Spy) start(ctx context.Context, config map[string]any) (map[string]any, error) {
	s.InitCalls.Add(1)
	if s.InitGate != nil {
		select {
		case <-s.InitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if errp := s.FailInit.Load(); errp != nil {
		return nil, *errp
	}
	return map[string]any{"started": true}, nil
}

func (s *Spy) stop(ctx context.Context) (map[string]any, error) {
	s.StopCalls.Add(1)
	if errp := s.FailStop.Load(); errp != nil {
		return nil, *errp
	}
	return map[string]any{"stopped": true}, nil
}

// AddData counts deliveries on top of the base buffering.
func (s *Spy) AddData(payload map[string]any, requestID string) error {
	s.DataCalls.Add(1)
	return s.Base.AddData(payload, requestID)
}

// AddLogData counts deliveries and buffers the payload like a cloud type.
func (s *Spy) AddLogData(payload map[string]any) error {
	s.LogCalls.Add(1)
	return s.Base.AddData(payload, "na")
}

// EmitData publishes a data event, standing in for the connector's peer.
func (s *Spy) EmitData(payload any) {
	s.Emit(connector.KindData, payload)
}

// EmitLog publishes a log event.
func (s *Spy) EmitLog(payload map[string]any) {
	s.Emit(connector.KindLog, payload)
}

// SetFailInit arranges for the next start hook invocations to fail.
func (s *Spy) SetFailInit(err error) {
	if err == nil {
		s.FailInit.Store(nil)
		return
	}
	s.FailInit.Store(&err)
}

// SetFailStop arranges for the next stop hook invocations to fail.
func (s *Spy) SetFailStop(err error) {
	if err == nil {
		s.FailStop.Store(nil)
		return
	}
	s.FailStop.Store(&err)
}
