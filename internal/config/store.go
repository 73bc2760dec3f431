package config

import (
	"maps"
	"sync"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// Store is the in-memory config document, mutated synchronously by the
// command interpreter and snapshotted for the serial writer. All access is
// copy-in/copy-out; callers never share map references with the store.
type Store struct {
	mu  sync.RWMutex
	doc *Config
}

// NewStore creates a store holding an empty document.
func NewStore() *Store {
	return &Store{doc: (&Config{}).Clone()}
}

// Replace swaps in a deep copy of cfg.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cfg.Clone()
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// ConnectorTypes returns a copy of the type table.
func (s *Store) ConnectorTypes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.doc.ConnectorTypes)
}

// SetConnectorType rebinds one type name to a module reference.
func (s *Store) SetConnectorType(name, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ConnectorTypes[name] = ref
}

// Section returns a deep copy of one category's entries.
func (s *Store) Section(category connector.Category) map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.section(category)
	out := make(map[string]Entry, len(src))
	for id, e := range src {
		out[id] = CloneEntry(e)
	}
	return out
}

// Entry returns a deep copy of one slot's entry.
func (s *Store) Entry(category connector.Category, id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.section(category)[id]
	if !ok {
		return Entry{}, false
	}
	return CloneEntry(e), true
}

// SetEntry replaces one slot's entry.
func (s *Store) SetEntry(category connector.Category, id string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.section(category)[id] = CloneEntry(e)
}

// DeleteEntry removes one slot's entry, reporting whether it was present.
func (s *Store) DeleteEntry(category connector.Category, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	section := s.section(category)
	if _, ok := section[id]; !ok {
		return false
	}
	delete(section, id)
	return true
}

// section returns the live map for a category; callers hold the lock.
func (s *Store) section(category connector.Category) map[string]Entry {
	if category == connector.CategoryCloud {
		return s.doc.CloudConnectors
	}
	return s.doc.DeviceConnectors
}
