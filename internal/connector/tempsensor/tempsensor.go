// Package tempsensor implements the TempSensor connector type: a polled
// device connector emitting synthetic temperature readings, used as the
// reference polling subtype and in local test rigs.
package tempsensor

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// Connector emits a reading on every poll tick. Config accepts the polling
// option pollFrequency plus an optional baseline (degrees, default 21).
type Connector struct {
	*connector.Polling
	baseline float64
}

// New constructs an inactive TempSensor connector.
func New(id string) connector.Connector {
	c := &Connector{baseline: 21}
	c.Polling = connector.NewPolling(id, c.read)
	return c
}

// Init picks up the optional baseline before delegating to the polling
// lifecycle.
func (c *Connector) Init(ctx context.Context, config map[string]any, requestID string) (map[string]any, error) {
	if config != nil {
		if b, ok := config["baseline"].(float64); ok {
			c.baseline = b
		}
	}
	return c.Polling.Init(ctx, config, requestID)
}

func (c *Connector) read(ctx context.Context) {
	// Jitter around the baseline, coarse enough to look like a real probe.
	value := c.baseline + (rand.Float64()-0.5)*2
	c.Emit(connector.KindData, map[string]any{
		"sensor":      c.String(),
		"temperature": value,
		"observedAt":  time.Now().UTC().Format(time.RFC3339),
	})
}
