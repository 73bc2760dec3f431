package controller

import "errors"

var (
	// ErrAlreadyActive is the init guard failure when the slot already holds
	// an instance.
	ErrAlreadyActive = errors.New("connector already active")

	// ErrNotActive is the stop guard failure when the slot holds no
	// instance.
	ErrNotActive = errors.New("connector not active")

	// ErrShuttingDown is the init guard failure while the shutdown gate is
	// set.
	ErrShuttingDown = errors.New("controller shutting down")

	// ErrNoRecord is returned when a command targets a slot the controller
	// has never seen.
	ErrNoRecord = errors.New("no such connector")

	// ErrNoConfigEntry is returned when a start targets a slot with no
	// config entry.
	ErrNoConfigEntry = errors.New("no config entry for connector")

	// ErrStartupFailed is returned by Init when any connector init step
	// rejects.
	ErrStartupFailed = errors.New("controller startup failed")

	// ErrShutdownFailed is returned by Shutdown when any connector stop
	// step rejects.
	ErrShutdownFailed = errors.New("controller shutdown failed")

	// ErrUnknownAction is reported on the CnC request for unrecognized
	// actions.
	ErrUnknownAction = errors.New("unknown action")
)
