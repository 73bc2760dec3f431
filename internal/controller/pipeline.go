package controller

import (
	"context"
	"log/slog"
)

// pipelineDepth bounds the per-slot step queue. Enqueues beyond this block
// the issuer until the worker catches up.
const pipelineDepth = 64

// stepResult carries the outcome of one lifecycle step.
type stepResult struct {
	payload map[string]any
	err     error
}

// step is one queued lifecycle operation on a slot.
type step struct {
	name string
	run  func(ctx context.Context) (map[string]any, error)
	done chan stepResult
}

// pipeline totally orders lifecycle steps on one connector slot. A single
// worker consumes the queue, so steps on the same slot never overlap; a
// failed step does not poison the queue. Guards inside each step run at
// execution time, not enqueue time.
type pipeline struct {
	tasks  chan *step
	logger *slog.Logger
}

// newPipeline starts the slot worker. The worker runs until ctx is
// cancelled, at which point queued steps fail with the context error.
func newPipeline(ctx context.Context, logger *slog.Logger) *pipeline {
	p := &pipeline{
		tasks:  make(chan *step, pipelineDepth),
		logger: logger,
	}
	go p.worker(ctx)
	return p
}

// enqueue appends a step and returns the channel its result will be
// delivered on. The channel is buffered, so abandoning it is safe.
func (p *pipeline) enqueue(name string, run func(ctx context.Context) (map[string]any, error)) <-chan stepResult {
	s := &step{
		name: name,
		run:  run,
		done: make(chan stepResult, 1),
	}
	p.tasks <- s
	return s.done
}

func (p *pipeline) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain(ctx.Err())
			return
		case s := <-p.tasks:
			// The select picks arbitrarily when both channels are ready, so
			// cancellation must win before a dequeued step runs.
			if err := ctx.Err(); err != nil {
				s.done <- stepResult{err: err}
				p.drain(err)
				return
			}
			payload, err := s.run(ctx)
			if err != nil {
				p.logger.Debug("Pipeline step failed", "step", s.name, "error", err)
			}
			s.done <- stepResult{payload: payload, err: err}
		}
	}
}

// drain fails every step still queued so awaiting issuers are released.
func (p *pipeline) drain(err error) {
	for {
		select {
		case s := <-p.tasks:
			s.done <- stepResult{err: err}
		default:
			return
		}
	}
}
