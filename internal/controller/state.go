package controller

import (
	"context"

	"github.com/edgegate-io/edgegate/internal/controller/finitestate"
)

// GetState returns the current state of the controller runnable.
func (c *Controller) GetState() string {
	return c.fsm.GetState()
}

// GetStateChan returns a channel emitting the controller's state whenever it
// changes. The channel is closed when the context is canceled.
func (c *Controller) GetStateChan(ctx context.Context) <-chan string {
	return c.fsm.GetStateChan(ctx)
}

// IsRunning reports whether the runnable has booted and not yet begun
// stopping.
func (c *Controller) IsRunning() bool {
	return c.fsm.GetState() == finitestate.StatusRunning
}
