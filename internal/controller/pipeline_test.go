package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgegate-io/edgegate/internal/logging"
)

func TestPipeline_ExecutesInOrder(t *testing.T) {
	t.Parallel()

	p := newPipeline(t.Context(), logging.NopLogger())

	var mu sync.Mutex
	var order []int
	var dones []<-chan stepResult
	for i := range 10 {
		done := p.enqueue("step", func(context.Context) (map[string]any, error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil, nil
		})
		dones = append(dones, done)
	}
	for _, done := range dones {
		require.NoError(t, (<-done).err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestPipeline_FailedStepDoesNotPoisonTheQueue(t *testing.T) {
	t.Parallel()

	p := newPipeline(t.Context(), logging.NopLogger())

	boom := errors.New("boom")
	failed := p.enqueue("fail", func(context.Context) (map[string]any, error) {
		return nil, boom
	})
	ok := p.enqueue("ok", func(context.Context) (map[string]any, error) {
		return map[string]any{"fine": true}, nil
	})

	require.ErrorIs(t, (<-failed).err, boom)
	res := <-ok
	require.NoError(t, res.err)
	assert.Equal(t, map[string]any{"fine": true}, res.payload)
}

func TestPipeline_CancelDrainsQueuedSteps(t *testing.T) {
	t.Parallel()

	// Repeated because the worker's select sees both the cancellation and the
	// queued step ready at once; every queued step must fail either way.
	for range 25 {
		ctx, cancel := context.WithCancel(t.Context())
		p := newPipeline(ctx, logging.NopLogger())

		gate := make(chan struct{})
		running := p.enqueue("hold", func(ctx context.Context) (map[string]any, error) {
			close(gate)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		queued := p.enqueue("queued", func(context.Context) (map[string]any, error) {
			return nil, nil
		})

		<-gate
		cancel()

		require.ErrorIs(t, (<-running).err, context.Canceled)
		require.ErrorIs(t, (<-queued).err, context.Canceled)
	}
}

func TestProperty_PipelineStepsNeverOverlap(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one step in flight", prop.ForAll(
		func(durationsMicros []int8) bool {
			p := newPipeline(t.Context(), logging.NopLogger())

			var inFlight atomic.Int32
			var maxInFlight atomic.Int32
			var dones []<-chan stepResult
			for _, d := range durationsMicros {
				pause := time.Duration(int(d)&0x0f) * time.Microsecond
				dones = append(dones, p.enqueue("work", func(context.Context) (map[string]any, error) {
					now := inFlight.Add(1)
					if prev := maxInFlight.Load(); now > prev {
						maxInFlight.Store(now)
					}
					time.Sleep(pause)
					inFlight.Add(-1)
					return nil, nil
				}))
			}
			for _, done := range dones {
				<-done
			}
			return maxInFlight.Load() <= 1
		},
		gen.SliceOf(gen.Int8()),
	))

	properties.TestingRun(t)
}
