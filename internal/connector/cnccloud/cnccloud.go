// Package cnccloud implements the CncCloud connector type: the cloud bridge
// that delivers command-and-control batches to the gateway and buffers reply
// envelopes for upstream pickup.
package cnccloud

import (
	"context"
	"fmt"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// Connector is a cloud connector whose peer is the CnC control service.
// Command batches arrive through InjectCommands; outbound envelopes and log
// records accumulate in the shared buffer until the transport drains them.
type Connector struct {
	*connector.Base
}

// New constructs an inactive CncCloud connector.
func New(id string) connector.Connector {
	c := &Connector{Base: connector.New(id)}
	c.SetHooks(c.start, c.stop)
	return c
}

func (c *Connector) start(ctx context.Context, config map[string]any) (map[string]any, error) {
	endpoint, _ := config["endpoint"].(string)
	if pw, ok := config["password"]; ok {
		if _, isString := pw.(string); !isString {
			return nil, fmt.Errorf("%w: password must be a string", connector.ErrInvalidConfig)
		}
	}
	c.Logger().Info("CnC cloud connector started", "endpoint", endpoint)
	return map[string]any{"endpoint": endpoint}, nil
}

func (c *Connector) stop(ctx context.Context) (map[string]any, error) {
	c.Logger().Info("CnC cloud connector stopped", "buffered", c.Buffered())
	return map[string]any{}, nil
}

// AddLogData queues a log payload alongside the outbound envelopes.
func (c *Connector) AddLogData(payload map[string]any) error {
	return c.AddData(payload, "na")
}

// InjectCommands emits a command batch as a data event, as if it had arrived
// from the control service.
func (c *Connector) InjectCommands(batch []any) {
	c.Emit(connector.KindData, batch)
}
