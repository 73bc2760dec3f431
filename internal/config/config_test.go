package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `{
    "connectorTypes": {"A": "./a"},
    "cloudConnectors": {"c1": {"type": "A", "config": {}}},
    "deviceConnectors": {"d1": {"type": "A", "config": {}}}
}`

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "gateway.json")
		require.NoError(t, os.WriteFile(path, []byte(validDoc), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "./a", cfg.ConnectorTypes["A"])
		assert.Contains(t, cfg.CloudConnectors, "c1")
		assert.Contains(t, cfg.DeviceConnectors, "d1")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.ErrorIs(t, err, ErrConfigRead)
	})
}

func TestParseShape(t *testing.T) {
	t.Parallel()

	t.Run("bad json", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte("{nope"))
		require.ErrorIs(t, err, ErrConfigParse)
	})

	t.Run("missing connectorTypes", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"cloudConnectors": {}, "deviceConnectors": {}}`))
		require.ErrorIs(t, err, ErrConfigShape)
		assert.Contains(t, err.Error(), SectionConnectorTypes)
	})

	t.Run("section is a sequence", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"connectorTypes": {}, "cloudConnectors": [], "deviceConnectors": {}}`))
		require.ErrorIs(t, err, ErrConfigShape)
		assert.Contains(t, err.Error(), SectionCloudConnectors)
	})

	t.Run("missing deviceConnectors", func(t *testing.T) {
		t.Parallel()
		_, err := Parse([]byte(`{"connectorTypes": {}, "cloudConnectors": {}}`))
		require.ErrorIs(t, err, ErrConfigShape)
		assert.Contains(t, err.Error(), SectionDeviceConnectors)
	})
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.ConnectorTypes["A"] = "./b"
	clone.CloudConnectors["c1"] = Entry{Type: "B", Config: map[string]any{"x": 1.0}}

	assert.Equal(t, "./a", cfg.ConnectorTypes["A"])
	assert.Equal(t, "A", cfg.CloudConnectors["c1"].Type)
}

func TestMarshalUsesFourSpaceIndent(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"connectorTypes\"")

	// Round-trips through Parse.
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
