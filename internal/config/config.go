// Package config holds the gateway's persisted configuration document: the
// connector type table and the per-category connector entries. The document
// is read once at controller init and rewritten by the serial writer when
// cloud commands mutate it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Section names of the three required top-level mappings.
const (
	SectionConnectorTypes   = "connectorTypes"
	SectionCloudConnectors  = "cloudConnectors"
	SectionDeviceConnectors = "deviceConnectors"
)

// Entry configures a single connector slot.
type Entry struct {
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

// Config is the full persisted document.
type Config struct {
	ConnectorTypes   map[string]string `json:"connectorTypes"`
	CloudConnectors  map[string]Entry  `json:"cloudConnectors"`
	DeviceConnectors map[string]Entry  `json:"deviceConnectors"`
}

// Load reads and validates the config document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigRead, path, err)
	}
	return Parse(data)
}

// Parse decodes and shape-checks a config document.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	for _, section := range []string{
		SectionConnectorTypes,
		SectionCloudConnectors,
		SectionDeviceConnectors,
	} {
		value, ok := raw[section]
		if !ok {
			return nil, fmt.Errorf("%w: missing section %q", ErrConfigShape, section)
		}
		if _, isMapping := value.(map[string]any); !isMapping {
			return nil, fmt.Errorf("%w: section %q must be a mapping", ErrConfigShape, section)
		}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize replaces nil maps with empty ones so lookups and writes never
// need nil checks.
func (c *Config) normalize() {
	if c.ConnectorTypes == nil {
		c.ConnectorTypes = map[string]string{}
	}
	if c.CloudConnectors == nil {
		c.CloudConnectors = map[string]Entry{}
	}
	if c.DeviceConnectors == nil {
		c.DeviceConnectors = map[string]Entry{}
	}
}

// Clone returns a deep copy of the document. The document is JSON-derived,
// so a marshal round-trip is an exact copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		// The document came from JSON; re-encoding cannot fail.
		panic(fmt.Sprintf("config clone: %v", err))
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("config clone: %v", err))
	}
	out.normalize()
	return &out
}

// Marshal serializes the document as indented UTF-8 JSON, the on-disk
// format.
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// CloneEntry deep-copies a single entry.
func CloneEntry(e Entry) Entry {
	out := Entry{Type: e.Type}
	if e.Config != nil {
		out.Config = cloneMap(e.Config)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("config clone: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("config clone: %v", err))
	}
	return out
}
