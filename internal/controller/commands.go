package controller

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/edgegate-io/edgegate/internal/cnc"
	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/connector"
	"golang.org/x/sync/errgroup"
)

// isIdleStop reports whether a stop failure just means the slot had nothing
// running.
func isIdleStop(err error) bool {
	return errors.Is(err, ErrNotActive)
}

func batchErr(rec *record, err error) error {
	return fmt.Errorf("%s/%s: %w", rec.category, rec.id, err)
}

// CnC actions understood by the controller.
const (
	ActionStartConnector      = "start_connector"
	ActionStopConnector       = "stop_connector"
	ActionRestartConnector    = "restart_connector"
	ActionStartAll            = "start_all_connectors"
	ActionStopAll             = "stop_all_connectors"
	ActionRestartAll          = "restart_all_connectors"
	ActionListConnectors      = "list_connectors"
	ActionGetConnectorConfig  = "get_connector_config"
	ActionSendData            = "send_data"
	ActionUpdateConfig        = "update_config"
	ActionDeleteConfig        = "delete_config"
	ActionUpdateConnectorType = "update_connector_type"
	ActionMaintenance         = "maintenance_action"
)

// knownActions bounds the command counter's label set; actions arrive from
// the cloud, so unrecognized ones must not mint new label values.
var knownActions = map[string]struct{}{
	ActionStartConnector:      {},
	ActionStopConnector:       {},
	ActionRestartConnector:    {},
	ActionStartAll:            {},
	ActionStopAll:             {},
	ActionRestartAll:          {},
	ActionListConnectors:      {},
	ActionGetConnectorConfig:  {},
	ActionSendData:            {},
	ActionUpdateConfig:        {},
	ActionDeleteConfig:        {},
	ActionUpdateConnectorType: {},
	ActionMaintenance:         {},
}

func actionLabel(action string) string {
	if _, ok := knownActions[action]; ok {
		return action
	}
	return "unknown"
}

// dispatch acknowledges the request and routes it to its action handler. It
// returns whether the command mutated the config store; completions for
// lifecycle actions arrive asynchronously once their pipeline steps finish.
func (c *Controller) dispatch(req *cnc.Request) bool {
	c.metrics.Commands.WithLabelValues(actionLabel(req.Command.Action)).Inc()
	req.Ack()

	switch req.Command.Action {
	case ActionStartConnector:
		c.cmdStartConnector(req)
	case ActionStopConnector:
		c.cmdStopConnector(req)
	case ActionRestartConnector:
		c.cmdRestartConnector(req)
	case ActionStartAll:
		c.cmdBatchLifecycle(req, true, false)
	case ActionStopAll:
		c.cmdBatchLifecycle(req, false, true)
	case ActionRestartAll:
		c.cmdBatchLifecycle(req, true, true)
	case ActionListConnectors:
		c.cmdListConnectors(req)
	case ActionGetConnectorConfig:
		c.cmdGetConnectorConfig(req)
	case ActionSendData:
		c.cmdSendData(req)
	case ActionUpdateConfig:
		return c.cmdUpdateConfig(req)
	case ActionDeleteConfig:
		return c.cmdDeleteConfig(req)
	case ActionUpdateConnectorType:
		return c.cmdUpdateConnectorType(req)
	case ActionMaintenance:
		c.cmdMaintenance(req)
	default:
		req.CompleteError("%v: %q", ErrUnknownAction, req.Command.Action)
	}
	return false
}

// requireCategory extracts and validates the category argument, failing the
// request when it is unusable.
func (c *Controller) requireCategory(req *cnc.Request) (connector.Category, bool) {
	category, err := connector.ParseCategory(req.Command.Category)
	if err != nil {
		req.CompleteError("%v", err)
		return "", false
	}
	return category, true
}

// requireSlot extracts and validates the category and id arguments.
func (c *Controller) requireSlot(req *cnc.Request) (connector.Category, string, bool) {
	category, ok := c.requireCategory(req)
	if !ok {
		return "", "", false
	}
	if req.Command.ID == "" {
		req.CompleteError("connector id is required")
		return "", "", false
	}
	return category, req.Command.ID, true
}

func (c *Controller) cmdStartConnector(req *cnc.Request) {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return
	}

	// No config entry means no slot: checking before ensureRecord keeps a
	// mistyped id from leaving a permanent empty record behind.
	if _, ok := c.store.Entry(category, id); !ok {
		req.CompleteError("%v: %s/%s", ErrNoConfigEntry, category, id)
		return
	}

	rec := c.ensureRecord(category, id)
	done := c.enqueueInit(rec, req.ID)
	go func() {
		res := <-done
		if res.err != nil {
			req.CompleteError("failed to start %s/%s: %v", category, id, res.err)
			return
		}
		req.CompleteOK(res.payload)
	}()
}

func (c *Controller) cmdStopConnector(req *cnc.Request) {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return
	}

	rec, ok := c.lookupRecord(category, id)
	if !ok {
		req.CompleteError("%v: %s/%s", ErrNoRecord, category, id)
		return
	}

	done := c.enqueueStop(rec, req.ID)
	go func() {
		res := <-done
		if res.err != nil {
			req.CompleteError("failed to stop %s/%s: %v", category, id, res.err)
			return
		}
		req.CompleteOK(res.payload)
	}()
}

// cmdRestartConnector queues the stop and the init back to back, so no other
// operation can interleave on the slot. A stop that finds the slot already
// idle is not a failure.
func (c *Controller) cmdRestartConnector(req *cnc.Request) {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return
	}

	rec, ok := c.lookupRecord(category, id)
	if !ok {
		req.CompleteError("%v: %s/%s", ErrNoRecord, category, id)
		return
	}

	stopDone := c.enqueueStop(rec, req.ID)
	initDone := c.enqueueInit(rec, req.ID)
	go func() {
		if res := <-stopDone; res.err != nil {
			req.Log(slog.LevelWarn, "stop during restart of %s/%s: %v", category, id, res.err)
		}
		res := <-initDone
		if res.err != nil {
			req.CompleteError("failed to restart %s/%s: %v", category, id, res.err)
			return
		}
		req.CompleteOK(res.payload)
	}()
}

// cmdBatchLifecycle implements the start/stop/restart-all actions. The
// optional category argument narrows the batch; stops tolerate idle slots.
func (c *Controller) cmdBatchLifecycle(req *cnc.Request, doInit, doStop bool) {
	var filter *connector.Category
	if req.Command.Category != "" {
		category, ok := c.requireCategory(req)
		if !ok {
			return
		}
		filter = &category
	}

	// Init targets are driven by the config document so never-started slots
	// get records; stop targets are the existing records. A record whose
	// entry was deleted while running is stopped but never re-inited.
	type phases struct{ stop, init bool }
	targets := map[*record]*phases{}
	if doStop {
		for _, rec := range c.snapshotRecords(filter) {
			targets[rec] = &phases{stop: true}
		}
	}
	if doInit {
		for _, category := range []connector.Category{connector.CategoryCloud, connector.CategoryDevice} {
			if filter != nil && *filter != category {
				continue
			}
			for id := range c.store.Section(category) {
				rec := c.ensureRecord(category, id)
				if target, ok := targets[rec]; ok {
					target.init = true
				} else {
					targets[rec] = &phases{init: true}
				}
			}
		}
	}

	var g errgroup.Group
	for rec, target := range targets {
		var stopDone, initDone <-chan stepResult
		if target.stop {
			stopDone = c.enqueueStop(rec, req.ID)
		}
		if target.init {
			initDone = c.enqueueInit(rec, req.ID)
		}
		g.Go(func() error {
			if stopDone != nil {
				if res := <-stopDone; res.err != nil && !isIdleStop(res.err) {
					return batchErr(rec, res.err)
				}
			}
			if initDone != nil {
				if res := <-initDone; res.err != nil {
					return batchErr(rec, res.err)
				}
			}
			return nil
		})
	}

	count := len(targets)
	go func() {
		if err := g.Wait(); err != nil {
			req.CompleteError("%v", err)
			return
		}
		req.CompleteOK(map[string]any{"connectors": count})
	}()
}

func (c *Controller) cmdListConnectors(req *cnc.Request) {
	var filter *connector.Category
	if req.Command.Category != "" {
		category, ok := c.requireCategory(req)
		if !ok {
			return
		}
		filter = &category
	}

	type row struct {
		id       string
		category connector.Category
		state    string
	}

	c.mu.Lock()
	var rows []row
	for category, slots := range c.records {
		if filter != nil && *filter != category {
			continue
		}
		for id, rec := range slots {
			rows = append(rows, row{id: id, category: category, state: rec.state()})
		}
	}
	c.mu.Unlock()

	slices.SortFunc(rows, func(a, b row) int {
		if v := cmp.Compare(a.category, b.category); v != 0 {
			return v
		}
		return cmp.Compare(a.id, b.id)
	})

	list := make([]any, 0, len(rows))
	for _, r := range rows {
		list = append(list, map[string]any{
			"id":       r.id,
			"category": string(r.category),
			"state":    r.state,
		})
	}
	req.CompleteOK(map[string]any{"connectors": list})
}

// cmdGetConnectorConfig returns one sanitized entry, or the whole sanitized
// section when no id is given.
func (c *Controller) cmdGetConnectorConfig(req *cnc.Request) {
	category, ok := c.requireCategory(req)
	if !ok {
		return
	}

	if req.Command.ID == "" {
		response := map[string]any{}
		for id, entry := range config.SanitizeSection(c.store.Section(category)) {
			response[id] = map[string]any{
				"type":   entry.Type,
				"config": entry.Config,
			}
		}
		req.CompleteOK(response)
		return
	}

	entry, ok := c.store.Entry(category, req.Command.ID)
	if !ok {
		req.CompleteError("%v: %s/%s", ErrNoConfigEntry, category, req.Command.ID)
		return
	}

	sanitized := config.SanitizeEntry(entry)
	req.CompleteOK(map[string]any{
		"type":   sanitized.Type,
		"config": sanitized.Config,
	})
}

// cmdSendData forwards the command's data payload to the targeted connector
// instance.
func (c *Controller) cmdSendData(req *cnc.Request) {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return
	}
	if req.Command.Data == nil {
		req.CompleteError("data is required")
		return
	}

	c.mu.Lock()
	rec, found := c.records[category][id]
	var instance connector.Connector
	if found {
		instance = rec.instance
	}
	c.mu.Unlock()

	if instance == nil {
		req.CompleteError("%v: %s/%s", ErrNotActive, category, id)
		return
	}
	if err := instance.AddData(req.Command.Data, req.ID); err != nil {
		req.CompleteError("failed to deliver data to %s/%s: %v", category, id, err)
		return
	}
	req.CompleteOK(nil)
}

// cmdUpdateConfig replaces one slot's config entry. The command's config
// argument is the full entry, so a get_connector_config response (with
// credentials refilled) can be sent back verbatim.
func (c *Controller) cmdUpdateConfig(req *cnc.Request) bool {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return false
	}

	raw := req.Command.Config
	if raw == nil {
		req.CompleteError("config is required")
		return false
	}
	entryType, _ := raw["type"].(string)
	if entryType == "" {
		req.CompleteError("config entry has no type")
		return false
	}
	entry := config.Entry{Type: entryType}
	if cfg, ok := raw["config"].(map[string]any); ok {
		entry.Config = cfg
	}

	c.store.SetEntry(category, id, entry)
	req.Log(slog.LevelInfo, "updated config for %s/%s", category, id)
	req.CompleteOK(nil)
	return true
}

func (c *Controller) cmdDeleteConfig(req *cnc.Request) bool {
	category, id, ok := c.requireSlot(req)
	if !ok {
		return false
	}

	removed := c.store.DeleteEntry(category, id)
	req.CompleteOK(map[string]any{"removed": removed})
	return true
}

// cmdUpdateConnectorType rebinds a type name to a module reference and
// rebuilds the registry from the updated type table.
func (c *Controller) cmdUpdateConnectorType(req *cnc.Request) bool {
	name := req.Command.Type
	if name == "" {
		req.CompleteError("connector type name is required")
		return false
	}
	if req.Command.ModulePath == "" {
		req.CompleteError("module path is required")
		return false
	}

	c.store.SetConnectorType(name, req.Command.ModulePath)
	c.registry.Init(c.store.ConnectorTypes(), c.moduleBasePath)
	req.Log(slog.LevelInfo, "bound connector type %s to %s", name, req.Command.ModulePath)
	req.CompleteOK(nil)
	return true
}

// cmdMaintenance closes the shutdown gate, stops every connector, and then
// hands the opaque maintenance command to the host process via the
// maintenance channel.
func (c *Controller) cmdMaintenance(req *cnc.Request) {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	go func() {
		if err := c.stopAllRecords(req.ID, nil); err != nil {
			req.CompleteError("maintenance stop failed: %v", err)
			return
		}
		c.active.Store(false)

		c.broadcastMaintenance(MaintenanceEvent{
			Command:   req.Command.Raw["command"],
			RequestID: req.ID,
		})
		req.CompleteOK(nil)
	}()
}
