// Package finitestate provides the state machine for the controller
// runnable's lifecycle.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

const (
	StatusNew      = fsm.StatusNew
	StatusBooting  = fsm.StatusBooting
	StatusRunning  = fsm.StatusRunning
	StatusStopping = fsm.StatusStopping
	StatusStopped  = fsm.StatusStopped
	StatusError    = fsm.StatusError
	StatusUnknown  = fsm.StatusUnknown
)

// TypicalTransitions is the standard runnable transition set.
var TypicalTransitions = fsm.TypicalTransitions

// Machine is the fsm interface the controller depends on.
type Machine interface {
	Transition(state string) error

	TransitionBool(state string) bool

	TransitionIfCurrentState(currentState, newState string) error

	SetState(state string) error

	GetState() string

	GetStateChan(ctx context.Context) <-chan string

	GetStateChanWithOptions(ctx context.Context, opts ...fsm.SubscriberOption) <-chan string
}

// ControllerFSM embeds fsm.Machine and overrides GetStateChan for sync
// broadcast, so state updates are delivered during shutdown.
type ControllerFSM struct {
	*fsm.Machine
}

func (m *ControllerFSM) GetStateChan(ctx context.Context) <-chan string {
	return m.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// New creates a controller state machine using the standard transitions.
func New(handler slog.Handler) (Machine, error) {
	machine, err := fsm.New(handler, StatusNew, TypicalTransitions)
	if err != nil {
		return nil, err
	}
	return &ControllerFSM{Machine: machine}, nil
}
