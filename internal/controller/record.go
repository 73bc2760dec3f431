package controller

import (
	"context"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// record is the controller's per-slot bookkeeping. At most one record exists
// per (category, id). Fields are guarded by the controller mutex; the
// pipeline guarantees at most one lifecycle step is in flight.
type record struct {
	id       string
	category connector.Category

	// instance is present only between a successful init and the next stop.
	instance connector.Connector

	// actionPending is true while a lifecycle step is executing on the
	// instance.
	actionPending bool

	// lastResult holds the payload of the last lifecycle completion, or the
	// error message of the last failure.
	lastResult any

	// detach cancels the event-consumer goroutine wired at init.
	detach context.CancelFunc

	pipeline *pipeline
}

// Connector slot states reported by list_connectors.
const (
	stateReady   = "READY"
	stateWaiting = "WAITING"
)

// state reports READY when the slot holds an idle active instance.
func (r *record) state() string {
	if r.instance != nil && !r.actionPending {
		return stateReady
	}
	return stateWaiting
}

// Snapshot is the externally visible view of a slot, returned by the
// controller's connector accessors.
type Snapshot struct {
	ID            string
	Category      connector.Category
	Instance      connector.Connector
	ActionPending bool
	LastResult    any

	// Type and Config mirror the slot's config entry; empty when the entry
	// has been deleted while the instance was running.
	Type   string
	Config map[string]any
}
