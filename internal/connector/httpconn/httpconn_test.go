package httpconn

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/edgegate-io/edgegate/internal/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer records the batches and headers it receives.
type captureServer struct {
	*httptest.Server

	mu      sync.Mutex
	batches [][]map[string]any
	auth    []string
}

func newCaptureServer(t *testing.T) *captureServer {
	t.Helper()

	cs := &captureServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var batch []map[string]any
		require.NoError(t, json.Unmarshal(body, &batch))

		cs.mu.Lock()
		cs.batches = append(cs.batches, batch)
		cs.auth = append(cs.auth, r.Header.Get("Authorization"))
		cs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *captureServer) batchCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.batches)
}

func TestConnector_FlushesQueuedPayloads(t *testing.T) {
	t.Parallel()

	server := newCaptureServer(t)
	c := New("uplink")

	_, err := c.Init(t.Context(), map[string]any{
		"url":           server.URL,
		"flushInterval": float64(10),
		"headers":       map[string]any{"authorization": "Bearer token"},
	}, "r1")
	require.NoError(t, err)

	require.NoError(t, c.AddData(map[string]any{"temperature": 20.5}, "r1"))
	require.NoError(t, c.AddLogData(map[string]any{"message": "hi"}))

	require.Eventually(t, func() bool {
		return server.batchCount() >= 1
	}, time.Second, 5*time.Millisecond)

	server.mu.Lock()
	defer server.mu.Unlock()
	total := 0
	for _, batch := range server.batches {
		total += len(batch)
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, "Bearer token", server.auth[0])
}

func TestConnector_StopFlushesRemainder(t *testing.T) {
	t.Parallel()

	server := newCaptureServer(t)
	c := New("uplink")

	// Long interval, so only the final flush can deliver.
	_, err := c.Init(t.Context(), map[string]any{
		"url":           server.URL,
		"flushInterval": float64(60_000),
	}, "r1")
	require.NoError(t, err)

	require.NoError(t, c.AddData(map[string]any{"n": 1}, "r1"))
	_, err = c.Stop(t.Context(), "r2")
	require.NoError(t, err)

	assert.Equal(t, 1, server.batchCount())
}

func TestConnector_RequiresURL(t *testing.T) {
	t.Parallel()

	c := New("uplink")
	_, err := c.Init(t.Context(), map[string]any{}, "r1")
	require.ErrorIs(t, err, connector.ErrInvalidConfig)
	assert.False(t, c.Active())
}
