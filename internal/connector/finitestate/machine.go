// Package finitestate provides the lifecycle state machine for connector
// instances.
package finitestate

import (
	"log/slog"

	"github.com/robbyt/go-fsm"
)

const (
	// StatusInactive is the initial state; an instance that failed to start
	// or has been stopped remains here.
	StatusInactive = "inactive"

	// StatusActive is reached only through a successful Init.
	StatusActive = "active"
)

// LifecycleTransitions defines the two-state connector lifecycle.
var LifecycleTransitions = map[string][]string{
	StatusInactive: {StatusActive},
	StatusActive:   {StatusInactive},
}

// Machine is the subset of the fsm API the connector lifecycle needs.
type Machine interface {
	Transition(state string) error
	SetState(state string) error
	GetState() string
}

// New creates a connector lifecycle machine starting in StatusInactive.
func New(handler slog.Handler) (Machine, error) {
	return fsm.New(handler, StatusInactive, LifecycleTransitions)
}
