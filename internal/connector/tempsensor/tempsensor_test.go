package tempsensor

import (
	"testing"
	"time"

	"github.com/edgegate-io/edgegate/internal/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnector_EmitsReadings(t *testing.T) {
	t.Parallel()

	c := New("probe")
	_, err := c.Init(t.Context(), map[string]any{
		"pollFrequency": float64(5),
		"baseline":      float64(50),
	}, "r1")
	require.NoError(t, err)
	defer func() {
		_, err := c.Stop(t.Context(), "r2")
		require.NoError(t, err)
	}()

	select {
	case ev := <-c.Events():
		require.Equal(t, connector.KindData, ev.Kind)
		reading, ok := ev.Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "probe", reading["sensor"])

		temperature, ok := reading["temperature"].(float64)
		require.True(t, ok)
		assert.InDelta(t, 50, temperature, 1.0)
		assert.NotEmpty(t, reading["observedAt"])
	case <-time.After(time.Second):
		t.Fatal("no reading emitted")
	}
}

func TestConnector_RequiresPollFrequency(t *testing.T) {
	t.Parallel()

	c := New("probe")
	_, err := c.Init(t.Context(), map[string]any{}, "r1")
	require.ErrorIs(t, err, connector.ErrInvalidConfig)
}
