package controller

import (
	"github.com/edgegate-io/edgegate/internal/cnc"
	"github.com/edgegate-io/edgegate/internal/connector"
)

// routeEvent dispatches one connector event. Device data fans out to the
// cloud side; cloud data is a command batch; log events fan out to the cloud
// side regardless of origin.
func (c *Controller) routeEvent(rec *record, instance connector.Connector, ev connector.Event) {
	switch ev.Kind {
	case connector.KindData:
		if rec.category == connector.CategoryCloud {
			c.handleCloudData(instance, ev.Payload)
			return
		}
		c.fanoutData(ev.Payload)
	case connector.KindLog:
		c.fanoutLog(ev.Payload)
	default:
		c.logger.Warn("Dropping event of unknown kind", "kind", ev.Kind, "id", rec.id)
	}
}

// cloudInstances returns the currently instantiated cloud connectors.
func (c *Controller) cloudInstances() []connector.Connector {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]connector.Connector, 0, len(c.records[connector.CategoryCloud]))
	for _, rec := range c.records[connector.CategoryCloud] {
		if rec.instance != nil {
			out = append(out, rec.instance)
		}
	}
	return out
}

// fanoutData delivers a device data payload to every cloud connector,
// best-effort. Delivery failures are logged and do not affect the other
// targets.
func (c *Controller) fanoutData(payload any) {
	data, ok := payload.(map[string]any)
	if !ok {
		c.logger.Warn("Dropping device data payload that is not a mapping")
		c.metrics.DroppedPayloads.Inc()
		return
	}

	for _, cloud := range c.cloudInstances() {
		if err := cloud.AddData(data, cnc.DefaultRequestID); err != nil {
			c.logger.Warn("Failed to deliver data to cloud connector",
				"target", cloud.String(), "error", err)
			continue
		}
		c.metrics.DataFanout.Inc()
	}
}

// fanoutLog delivers a log payload to every cloud connector, best-effort.
func (c *Controller) fanoutLog(payload any) {
	data, ok := payload.(map[string]any)
	if !ok {
		c.logger.Warn("Dropping log payload that is not a mapping")
		c.metrics.DroppedPayloads.Inc()
		return
	}

	for _, cloud := range c.cloudInstances() {
		if err := cloud.AddLogData(data); err != nil {
			c.logger.Warn("Failed to deliver log data to cloud connector",
				"target", cloud.String(), "error", err)
			continue
		}
		c.metrics.LogFanout.Inc()
	}
}

// handleCloudData interprets a cloud connector's data event as a command
// batch. The payload must be a non-empty list; elements that are not
// mappings with an action string are skipped. One config write is scheduled
// per batch that mutated the store, after the last command has been
// dispatched.
func (c *Controller) handleCloudData(issuer connector.Connector, payload any) {
	batch, ok := payload.([]any)
	if !ok || len(batch) == 0 {
		c.logger.Warn("Dropping cloud payload that is not a non-empty command batch",
			"issuer", issuer.String())
		c.metrics.DroppedPayloads.Inc()
		return
	}

	mutated := false
	for _, element := range batch {
		raw, ok := element.(map[string]any)
		if !ok {
			c.logger.Warn("Dropping batch element that is not a mapping",
				"issuer", issuer.String())
			c.metrics.DroppedPayloads.Inc()
			continue
		}
		cmd, err := cnc.Decode(raw)
		if err != nil {
			c.logger.Warn("Dropping batch element", "issuer", issuer.String(), "error", err)
			c.metrics.DroppedPayloads.Inc()
			continue
		}

		req := cnc.NewRequest(cmd, issuer, c.handler)
		if c.dispatch(req) {
			mutated = true
		}
	}

	if mutated {
		c.scheduleConfigWrite()
	}
}
