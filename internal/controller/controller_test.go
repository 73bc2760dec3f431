package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgegate-io/edgegate/internal/config"
	"github.com/edgegate-io/edgegate/internal/connector"
	"github.com/edgegate-io/edgegate/internal/connector/mocks"
	"github.com/edgegate-io/edgegate/internal/connector/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
    "connectorTypes": {"Spy": "spy-module"},
    "cloudConnectors": {
        "cloud1": {"type": "Spy", "config": {}},
        "cloud2": {"type": "Spy", "config": {}}
    },
    "deviceConnectors": {
        "dev1": {"type": "Spy", "config": {}}
    }
}`

// spyTracker hands out mock connectors and remembers every instance, so
// tests can reach the spy behind a slot.
type spyTracker struct {
	mu       sync.Mutex
	byID     map[string][]*mocks.Spy
	failInit map[string]error
	gated    map[string]chan struct{}
}

func newSpyTracker() *spyTracker {
	return &spyTracker{
		byID:     map[string][]*mocks.Spy{},
		failInit: map[string]error{},
		gated:    map[string]chan struct{}{},
	}
}

func (st *spyTracker) loader(ref string) (registry.Constructor, error) {
	if ref == "missing-module" {
		return nil, errors.New("module not found")
	}
	return st.construct, nil
}

func (st *spyTracker) construct(id string) connector.Connector {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := mocks.New(id)
	if err, ok := st.failInit[id]; ok {
		s.SetFailInit(err)
	}
	if gate, ok := st.gated[id]; ok {
		s.InitGate = gate
	}
	st.byID[id] = append(st.byID[id], s)
	return s
}

// latest returns the most recently constructed spy for the id.
func (st *spyTracker) latest(id string) *mocks.Spy {
	st.mu.Lock()
	defer st.mu.Unlock()

	instances := st.byID[id]
	if len(instances) == 0 {
		return nil
	}
	return instances[len(instances)-1]
}

func (st *spyTracker) count(id string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.byID[id])
}

// setFailInit arranges for future instances of the id to fail their start
// hook; a nil error clears the arrangement.
func (st *spyTracker) setFailInit(id string, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err == nil {
		delete(st.failInit, id)
		return
	}
	st.failInit[id] = err
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// capturedWrites collects the snapshots the config writer persists.
type capturedWrites struct {
	mu        sync.Mutex
	snapshots []*config.Config
}

func (cw *capturedWrites) writeFunc(_ string, data []byte) error {
	cfg, err := config.Parse(data)
	if err != nil {
		return err
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.snapshots = append(cw.snapshots, cfg)
	return nil
}

func (cw *capturedWrites) count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.snapshots)
}

func (cw *capturedWrites) last() *config.Config {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if len(cw.snapshots) == 0 {
		return nil
	}
	return cw.snapshots[len(cw.snapshots)-1]
}

func newTestController(t *testing.T, tracker *spyTracker, writes *capturedWrites) *Controller {
	t.Helper()

	opts := []Option{
		WithContext(t.Context()),
		WithLoader(tracker.loader),
	}
	if writes != nil {
		opts = append(opts, WithWriterOptions(config.WithWriteFunc(writes.writeFunc)))
	}
	ctrl, err := New(opts...)
	require.NoError(t, err)
	return ctrl
}

func TestController_Init(t *testing.T) {
	t.Parallel()

	t.Run("starts every configured connector", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)

		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))
		assert.True(t, ctrl.IsActive())

		for _, id := range []string{"cloud1", "cloud2", "dev1"} {
			spy := tracker.latest(id)
			require.NotNil(t, spy, "no instance constructed for %s", id)
			assert.Equal(t, int64(1), spy.InitCalls.Load())
			assert.True(t, spy.Active())
		}

		cloud := ctrl.CloudConnectors()
		assert.Len(t, cloud, 2)
		assert.Equal(t, "Spy", cloud["cloud1"].Type)
		assert.Len(t, ctrl.DeviceConnectors(), 1)
	})

	t.Run("fails when any connector init fails", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		tracker.failInit["dev1"] = errors.New("sensor offline")
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)

		err := ctrl.Init(t.Context(), path, "boot")
		require.ErrorIs(t, err, ErrStartupFailed)
		assert.ErrorContains(t, err, "sensor offline")
		assert.False(t, ctrl.IsActive())
	})

	t.Run("fails on unreadable config file", func(t *testing.T) {
		t.Parallel()
		ctrl := newTestController(t, newSpyTracker(), nil)

		err := ctrl.Init(t.Context(), filepath.Join(t.TempDir(), "absent.json"), "boot")
		require.ErrorIs(t, err, config.ErrConfigRead)
	})

	t.Run("fails on unknown connector type", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, `{
            "connectorTypes": {"Ghost": "missing-module"},
            "cloudConnectors": {},
            "deviceConnectors": {"dev1": {"type": "Ghost", "config": {}}}
        }`)

		err := ctrl.Init(t.Context(), path, "boot")
		require.ErrorIs(t, err, ErrStartupFailed)
		assert.ErrorIs(t, err, registry.ErrUnknownType)
	})
}

func TestController_Shutdown(t *testing.T) {
	t.Parallel()

	t.Run("stops every connector", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)
		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))

		require.NoError(t, ctrl.Shutdown(t.Context(), "test"))
		assert.False(t, ctrl.IsActive())

		for _, id := range []string{"cloud1", "cloud2", "dev1"} {
			spy := tracker.latest(id)
			assert.Equal(t, int64(1), spy.StopCalls.Load(), "%s not stopped", id)
		}
		assert.Empty(t, ctrl.CloudConnectors())
		assert.Empty(t, ctrl.DeviceConnectors())
	})

	t.Run("tolerates already idle slots", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)
		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))

		require.NoError(t, ctrl.Shutdown(t.Context(), "first"))
		require.NoError(t, ctrl.Shutdown(t.Context(), "second"))
	})

	t.Run("fails when a stop hook fails", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)
		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))

		stopErr := errors.New("flush failed")
		tracker.latest("cloud1").SetFailStop(stopErr)
		err := ctrl.Shutdown(t.Context(), "test")
		require.ErrorIs(t, err, ErrShutdownFailed)
		assert.ErrorIs(t, err, stopErr, "slot error must stay in the chain")
	})

	t.Run("init after shutdown restarts connectors", func(t *testing.T) {
		t.Parallel()
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)

		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))
		require.NoError(t, ctrl.Shutdown(t.Context(), "test"))
		require.NoError(t, ctrl.Init(t.Context(), path, "reboot"))

		assert.True(t, ctrl.IsActive())
		assert.Equal(t, 2, tracker.count("dev1"), "expected a fresh instance per init")
	})
}

func TestController_PipelineSerialization(t *testing.T) {
	t.Parallel()

	tracker := newSpyTracker()
	gate := make(chan struct{})
	tracker.gated["dev1"] = gate
	ctrl := newTestController(t, tracker, nil)
	path := writeTestConfig(t, testConfig)

	initErr := make(chan error, 1)
	go func() {
		initErr <- ctrl.Init(t.Context(), path, "boot")
	}()

	// Wait for the gated init to be in flight, then queue a stop behind it.
	require.Eventually(t, func() bool {
		return tracker.latest("dev1") != nil && tracker.latest("dev1").InitCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	rec, ok := ctrl.lookupRecord(connector.CategoryDevice, "dev1")
	require.True(t, ok)
	stopDone := ctrl.enqueueStop(rec, "test")

	// The stop must not run while the init holds the slot.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), tracker.latest("dev1").StopCalls.Load())

	close(gate)
	require.NoError(t, <-initErr)

	res := <-stopDone
	require.NoError(t, res.err)
	assert.Equal(t, int64(1), tracker.latest("dev1").StopCalls.Load())
}

func TestController_Fanout(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*spyTracker, *Controller) {
		tracker := newSpyTracker()
		ctrl := newTestController(t, tracker, nil)
		path := writeTestConfig(t, testConfig)
		require.NoError(t, ctrl.Init(t.Context(), path, "boot"))
		return tracker, ctrl
	}

	t.Run("device data reaches every cloud connector", func(t *testing.T) {
		t.Parallel()
		tracker, _ := setup(t)

		tracker.latest("dev1").EmitData(map[string]any{"temperature": 21.5})

		require.Eventually(t, func() bool {
			return tracker.latest("cloud1").DataCalls.Load() == 1 &&
				tracker.latest("cloud2").DataCalls.Load() == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(0), tracker.latest("dev1").DataCalls.Load())
	})

	t.Run("log data reaches every cloud connector", func(t *testing.T) {
		t.Parallel()
		tracker, _ := setup(t)

		tracker.latest("dev1").EmitLog(map[string]any{"message": "hello"})

		require.Eventually(t, func() bool {
			return tracker.latest("cloud1").LogCalls.Load() == 1 &&
				tracker.latest("cloud2").LogCalls.Load() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("cloud log data also fans out", func(t *testing.T) {
		t.Parallel()
		tracker, _ := setup(t)

		tracker.latest("cloud1").EmitLog(map[string]any{"message": "from cloud"})

		require.Eventually(t, func() bool {
			return tracker.latest("cloud2").LogCalls.Load() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("stopped connector no longer receives data", func(t *testing.T) {
		t.Parallel()
		tracker, ctrl := setup(t)

		rec, ok := ctrl.lookupRecord(connector.CategoryCloud, "cloud2")
		require.True(t, ok)
		res := <-ctrl.enqueueStop(rec, "test")
		require.NoError(t, res.err)

		tracker.latest("dev1").EmitData(map[string]any{"temperature": 19.0})

		require.Eventually(t, func() bool {
			return tracker.latest("cloud1").DataCalls.Load() == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(0), tracker.latest("cloud2").DataCalls.Load())
	})
}

func TestController_RunnableLifecycle(t *testing.T) {
	t.Parallel()

	tracker := newSpyTracker()
	path := writeTestConfig(t, testConfig)
	ctrl, err := New(
		WithContext(t.Context()),
		WithLoader(tracker.loader),
		WithConfigFilePath(path),
	)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(t.Context())
	runErr := make(chan error, 1)
	go func() {
		runErr <- ctrl.Run(runCtx)
	}()

	require.Eventually(t, ctrl.IsRunning, time.Second, 5*time.Millisecond)
	assert.True(t, ctrl.IsActive())
	assert.Equal(t, "gateway.Controller", ctrl.String())

	cancel()
	require.NoError(t, <-runErr)
	assert.False(t, ctrl.IsActive())
	assert.Equal(t, int64(1), tracker.latest("dev1").StopCalls.Load())
}

func TestController_RunWithoutConfigPath(t *testing.T) {
	t.Parallel()

	ctrl, err := New(WithContext(t.Context()), WithLoader(newSpyTracker().loader))
	require.NoError(t, err)
	require.Error(t, ctrl.Run(t.Context()))
}
