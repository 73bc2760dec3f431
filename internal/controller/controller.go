// Package controller implements the gateway controller: the supervised
// runtime that owns the cloud and device connector collections, serializes
// lifecycle operations per slot, routes data and log events between the two
// sides, executes the command-and-control protocol, and persists config
// mutations back to disk.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/connector"
	"github.com/edgegate-io/edgegate/internal/connector/registry"
	"github.com/edgegate-io/edgegate/internal/controller/finitestate"
	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/edgegate-io/edgegate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robbyt/go-supervisor/supervisor"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the graceful stop performed when Run's context is
// cancelled.
const shutdownTimeout = 2 * time.Minute

// Interface guards
var (
	_ supervisor.Runnable  = (*Controller)(nil)
	_ supervisor.Stateable = (*Controller)(nil)
)

// MaintenanceEvent is broadcast after a maintenance_action has stopped all
// connectors.
type MaintenanceEvent struct {
	Command   any
	RequestID string
}

// Controller is the gateway facade. Construct with New, then either drive it
// directly via Init/Shutdown or hand it to a supervisor as a Runnable.
type Controller struct {
	logger  *slog.Logger
	handler slog.Handler
	fsm     finitestate.Machine

	registry *registry.Registry
	loader   registry.Loader
	provider logging.Provider
	store      *config.Store
	metrics    *metrics.Metrics
	registerer prometheus.Registerer

	moduleBasePath string
	configFilePath string
	writerOpts     []config.WriterOption

	// lifecycleCtx governs pipelines, event consumers, and subscriber
	// cleanup for the controller's whole lifetime.
	parentCtx       context.Context
	lifecycleCtx    context.Context
	lifecycleCancel context.CancelFunc

	runCtx    context.Context
	runCancel context.CancelFunc

	active atomic.Bool

	mu       sync.Mutex
	shutdown bool
	writer   *config.Writer
	records  map[connector.Category]map[string]*record

	maintenanceSubs   sync.Map
	subscriberCounter atomic.Uint64
}

// New creates an inactive controller.
func New(opts ...Option) (*Controller, error) {
	c := &Controller{
		logger:    slog.Default().WithGroup("controller"),
		parentCtx: context.Background(),
		store:     config.NewStore(),
		records: map[connector.Category]map[string]*record{
			connector.CategoryCloud:  {},
			connector.CategoryDevice: {},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.handler == nil {
		c.handler = c.logger.Handler()
	}
	if c.metrics == nil {
		if c.registerer != nil {
			c.metrics = metrics.New(c.registerer)
		} else {
			c.metrics = metrics.NewNop()
		}
	}
	c.registry = registry.New(c.loader, c.provider)
	c.lifecycleCtx, c.lifecycleCancel = context.WithCancel(c.parentCtx)

	fsmLogger := c.logger.WithGroup("fsm")
	machine, err := finitestate.New(fsmLogger.Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	c.fsm = machine

	return c, nil
}

// String implements the supervisor.Runnable interface.
func (c *Controller) String() string {
	return "gateway.Controller"
}

// Init loads the config document at configFilePath, rebuilds the type
// registry, and starts every configured connector in parallel. It clears the
// shutdown gate at entry and may be called again after a Shutdown.
func (c *Controller) Init(ctx context.Context, configFilePath, requestID string) error {
	logger := c.logger.WithGroup("Init").With("requestID", requestID)
	logger.Debug("Initializing controller", "configFile", configFilePath)

	c.mu.Lock()
	c.shutdown = false
	c.mu.Unlock()

	cfg, err := config.Load(configFilePath)
	if err != nil {
		return err
	}

	c.store.Replace(cfg)
	c.registry.Init(cfg.ConnectorTypes, c.moduleBasePath)

	c.mu.Lock()
	c.configFilePath = configFilePath
	if c.writer == nil {
		opts := append([]config.WriterOption{
			config.WithWriterLogHandler(c.handler),
			config.WithOnResult(c.recordWriteResult),
		}, c.writerOpts...)
		c.writer = config.NewWriter(configFilePath, opts...)
	}
	c.mu.Unlock()

	var g errgroup.Group
	for category, section := range map[connector.Category]map[string]config.Entry{
		connector.CategoryCloud:  cfg.CloudConnectors,
		connector.CategoryDevice: cfg.DeviceConnectors,
	} {
		for id := range section {
			rec := c.ensureRecord(category, id)
			done := c.enqueueInit(rec, requestID)
			g.Go(func() error {
				res := <-done
				if res.err != nil {
					return fmt.Errorf("%s/%s: %w", rec.category, rec.id, res.err)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartupFailed, err)
	}

	c.active.Store(true)
	logger.Info("Controller initialized")
	return nil
}

// Shutdown sets the shutdown gate and stops every connector in parallel.
// Slots that were already idle do not count as failures.
func (c *Controller) Shutdown(ctx context.Context, requestID string) error {
	logger := c.logger.WithGroup("Shutdown").With("requestID", requestID)
	logger.Debug("Stopping all connectors")

	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	if err := c.stopAllRecords(requestID, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrShutdownFailed, err)
	}

	c.active.Store(false)
	logger.Info("Controller stopped")
	return nil
}

// stopAllRecords enqueues a stop on every record (optionally filtered by
// category) and awaits the batch. ErrNotActive from idle slots is ignored.
func (c *Controller) stopAllRecords(requestID string, category *connector.Category) error {
	recs := c.snapshotRecords(category)

	var g errgroup.Group
	for _, rec := range recs {
		done := c.enqueueStop(rec, requestID)
		g.Go(func() error {
			res := <-done
			if res.err != nil && !errors.Is(res.err, ErrNotActive) {
				return fmt.Errorf("%s/%s: %w", rec.category, rec.id, res.err)
			}
			return nil
		})
	}
	return g.Wait()
}

// snapshotRecords returns the current records, optionally filtered.
func (c *Controller) snapshotRecords(category *connector.Category) []*record {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*record
	for cat, slots := range c.records {
		if category != nil && *category != cat {
			continue
		}
		for _, rec := range slots {
			out = append(out, rec)
		}
	}
	return out
}

// ensureRecord returns the slot record, creating it (and its pipeline) on
// first use.
func (c *Controller) ensureRecord(category connector.Category, id string) *record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.records[category][id]; ok {
		return rec
	}
	rec := &record{
		id:       id,
		category: category,
		pipeline: newPipeline(c.lifecycleCtx, c.logger.WithGroup("pipeline").With("id", id, "category", category)),
	}
	c.records[category][id] = rec
	return rec
}

// lookupRecord returns an existing slot record.
func (c *Controller) lookupRecord(category connector.Category, id string) (*record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[category][id]
	return rec, ok
}

// enqueueInit queues an init step on the slot. Guards run at execution time:
// an occupied slot fails AlreadyActive, the shutdown gate fails
// ShuttingDown, and a missing config entry fails NoConfigEntry.
func (c *Controller) enqueueInit(rec *record, requestID string) <-chan stepResult {
	return rec.pipeline.enqueue("init", func(ctx context.Context) (map[string]any, error) {
		c.mu.Lock()
		if rec.instance != nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyActive, rec.category, rec.id)
		}
		if c.shutdown {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: refusing to start %s/%s", ErrShuttingDown, rec.category, rec.id)
		}
		rec.actionPending = true
		c.mu.Unlock()

		payload, instance, err := c.startInstance(ctx, rec, requestID)

		c.mu.Lock()
		defer c.mu.Unlock()
		rec.actionPending = false
		if err != nil {
			rec.lastResult = err.Error()
			return nil, err
		}
		rec.instance = instance
		rec.lastResult = payload
		c.attachHandlers(rec, instance)
		return payload, nil
	})
}

// startInstance constructs and initializes a connector for the slot.
func (c *Controller) startInstance(ctx context.Context, rec *record, requestID string) (map[string]any, connector.Connector, error) {
	entry, ok := c.store.Entry(rec.category, rec.id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrNoConfigEntry, rec.category, rec.id)
	}

	instance, err := c.registry.CreateConnector(entry.Type, rec.id)
	if err != nil {
		return nil, nil, err
	}

	cfg := entry.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	payload, err := instance.Init(ctx, cfg, requestID)
	if err != nil {
		return nil, nil, err
	}
	return payload, instance, nil
}

// enqueueStop queues a stop step on the slot. The instance is cleared and
// its event handlers detached whether or not the stop hook succeeds.
func (c *Controller) enqueueStop(rec *record, requestID string) <-chan stepResult {
	return rec.pipeline.enqueue("stop", func(ctx context.Context) (map[string]any, error) {
		c.mu.Lock()
		instance := rec.instance
		if instance == nil {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s/%s", ErrNotActive, rec.category, rec.id)
		}
		rec.actionPending = true
		c.mu.Unlock()

		payload, err := instance.Stop(ctx, requestID)

		c.mu.Lock()
		defer c.mu.Unlock()
		rec.actionPending = false
		if rec.detach != nil {
			rec.detach()
			rec.detach = nil
		}
		rec.instance = nil
		if err != nil {
			rec.lastResult = err.Error()
			return nil, err
		}
		rec.lastResult = payload
		return payload, nil
	})
}

// attachHandlers wires the instance's event stream into the router. Exactly
// one consumer goroutine exists per instance creation; detaching cancels it.
// Callers hold the controller mutex.
func (c *Controller) attachHandlers(rec *record, instance connector.Connector) {
	ctx, cancel := context.WithCancel(c.lifecycleCtx)
	rec.detach = cancel

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-instance.Events():
				c.routeEvent(rec, instance, ev)
			}
		}
	}()
}

// CloudConnectors returns a snapshot of the cloud slots holding an instance.
func (c *Controller) CloudConnectors() map[string]Snapshot {
	return c.connectorSnapshots(connector.CategoryCloud)
}

// DeviceConnectors returns a snapshot of the device slots holding an
// instance.
func (c *Controller) DeviceConnectors() map[string]Snapshot {
	return c.connectorSnapshots(connector.CategoryDevice)
}

func (c *Controller) connectorSnapshots(category connector.Category) map[string]Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]Snapshot{}
	for id, rec := range c.records[category] {
		if rec.instance == nil {
			continue
		}
		snap := Snapshot{
			ID:            id,
			Category:      category,
			Instance:      rec.instance,
			ActionPending: rec.actionPending,
			LastResult:    rec.lastResult,
		}
		if entry, ok := c.store.Entry(category, id); ok {
			snap.Type = entry.Type
			snap.Config = entry.Config
		}
		out[id] = snap
	}
	return out
}

// IsActive reports whether the last Init succeeded and no Shutdown has run
// since.
func (c *Controller) IsActive() bool {
	return c.active.Load()
}

// MaintenanceChan returns a channel receiving maintenance events. The
// subscription is dropped and the channel closed when the controller's
// lifetime context ends.
func (c *Controller) MaintenanceChan() <-chan MaintenanceEvent {
	ch := make(chan MaintenanceEvent, 1)
	id := c.subscriberCounter.Add(1)
	c.maintenanceSubs.Store(id, ch)

	go func() {
		<-c.lifecycleCtx.Done()
		c.maintenanceSubs.Delete(id)
		close(ch)
	}()

	return ch
}

// broadcastMaintenance delivers an event to all subscribers, best-effort.
func (c *Controller) broadcastMaintenance(ev MaintenanceEvent) {
	c.maintenanceSubs.Range(func(key, value any) bool {
		ch, ok := value.(chan MaintenanceEvent)
		if !ok {
			c.maintenanceSubs.Delete(key)
			return true
		}
		select {
		case ch <- ev:
		default:
			c.logger.Warn("Maintenance subscriber channel full, skipping", "subscriber_id", key)
		}
		return true
	})
}

// scheduleConfigWrite hands the latest snapshot to the serial writer.
func (c *Controller) scheduleConfigWrite() {
	c.mu.Lock()
	writer := c.writer
	c.mu.Unlock()
	if writer == nil {
		c.logger.Warn("No config writer available, dropping config write")
		return
	}
	writer.Schedule(c.store.Snapshot())
}

func (c *Controller) recordWriteResult(err error) {
	if err != nil {
		c.metrics.ConfigWriteFailures.Inc()
		return
	}
	c.metrics.ConfigWrites.Inc()
}

// Run implements the supervisor.Runnable interface: boot from the configured
// config file, then block until the context is cancelled and stop all
// connectors.
func (c *Controller) Run(ctx context.Context) error {
	if c.configFilePath == "" {
		return errors.New("no config file path configured")
	}

	if err := c.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting: %w", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	c.runCtx = runCtx
	c.runCancel = runCancel
	defer runCancel()

	if err := c.Init(runCtx, c.configFilePath, "boot"); err != nil {
		if stateErr := c.fsm.Transition(finitestate.StatusError); stateErr != nil {
			c.logger.Error("Failed to transition to error state", "error", stateErr)
		}
		return err
	}

	if err := c.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running: %w", err)
	}

	<-runCtx.Done()
	c.logger.Info("Controller shutting down")

	if c.fsm.GetState() != finitestate.StatusStopping {
		if err := c.fsm.Transition(finitestate.StatusStopping); err != nil {
			c.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}

	// Fresh context for graceful shutdown since runCtx is canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := c.Shutdown(shutdownCtx, "shutdown") //nolint:contextcheck

	if stateErr := c.fsm.Transition(finitestate.StatusStopped); stateErr != nil {
		c.logger.Error("Failed to transition to stopped state", "error", stateErr)
	}

	c.lifecycleCancel()
	return err
}

// Stop implements the supervisor.Runnable interface.
func (c *Controller) Stop() {
	c.logger.Debug("Stop called")
	if c.runCancel != nil {
		c.runCancel()
	}
}
