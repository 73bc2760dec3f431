// Package registry maps connector type names onto constructors and builds
// connector instances with their logger injected.
package registry

import (
	"fmt"
	"maps"
	"path"
	"strings"
	"sync"

	"github.com/edgegate-io/edgegate/internal/connector"
	"github.com/edgegate-io/edgegate/internal/logging"
)

// Constructor builds a connector instance with the given id.
type Constructor func(id string) connector.Connector

// Loader resolves a module reference (a registry key or a resolved path)
// into a Constructor. The gateway's loader is injectable; the default only
// knows the compiled-in types.
type Loader func(ref string) (Constructor, error)

// Registry is the connector factory. Init replaces the whole type table;
// CreateConnector resolves a type name to a constructor and attaches the
// provider's logger to the new instance.
type Registry struct {
	loader   Loader
	provider logging.Provider

	mu    sync.RWMutex
	types map[string]string
}

// New creates an empty registry. A nil loader falls back to the builtin
// table; a nil provider yields no-op loggers.
func New(loader Loader, provider logging.Provider) *Registry {
	if loader == nil {
		loader = BuiltinLoader
	}
	return &Registry{
		loader:   loader,
		provider: provider,
		types:    map[string]string{},
	}
}

// Init replaces the type table with a copy of typeMap. Values beginning with
// "./" are resolved against basePath; everything else passes through
// unchanged.
func (r *Registry) Init(typeMap map[string]string, basePath string) {
	resolved := make(map[string]string, len(typeMap))
	for name, ref := range typeMap {
		resolved[name] = ResolveModuleRef(basePath, ref)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = resolved
}

// Types returns a snapshot of the current type table.
func (r *Registry) Types() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.types)
}

// CreateConnector builds a new instance of the named type.
func (r *Registry) CreateConnector(typeName, id string) (connector.Connector, error) {
	if typeName == "" {
		return nil, ErrInvalidType
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	ref, ok := r.types[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}

	construct, err := r.loader(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (module %q): %v", ErrUnknownType, typeName, ref, err)
	}

	instance := construct(id)
	if r.provider != nil {
		instance.SetLogger(r.provider.GetLogger(id))
	}
	return instance, nil
}

// ResolveModuleRef joins relative module references with the configured base
// path. References not starting with "./" pass through verbatim.
func ResolveModuleRef(basePath, ref string) string {
	if strings.HasPrefix(ref, "./") {
		return path.Join(basePath, ref)
	}
	return ref
}
