// Package context keeps the ledger backends the runtime can be started with.
// Backends register themselves from init, so importing a backend package enables it.
package context

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/types"
)

// ContextType names a ledger backend
type ContextType string

const (
	// MemoryContextType keeps the ledger in process memory
	MemoryContextType ContextType = "memory"
	// DBContextType stores the ledger in sqlite through gorm
	DBContextType ContextType = "db"
	// PebbleContextType stores the ledger in a pebble key-value store
	PebbleContextType ContextType = "pebble"
)

// ContextConstructor opens a ledger from backend specific parameters
type ContextConstructor func(params map[string]any) (types.Ledger, error)

// Registry defines the interface for managing ledger backends
type Registry interface {
	// Register adds a new backend to the registry
	Register(ct ContextType, constructor ContextConstructor) error
	// SetDefault sets the default context type
	SetDefault(ct ContextType) error
	// Get opens a ledger of the specified type
	Get(ct ContextType, params map[string]any) (types.Ledger, error)
	// GetDefault opens a ledger of the default type
	GetDefault(params map[string]any) (types.Ledger, error)
	// DefaultContextType returns the current default context type
	DefaultContextType() ContextType
	// ListRegistered returns a list of all registered context types
	ListRegistered() []ContextType
}

// registry implements the Registry interface
type registry struct {
	mu        sync.RWMutex
	contexts  map[ContextType]ContextConstructor
	defaultCt ContextType
}

var (
	// defaultRegistry is the global singleton registry instance
	defaultRegistry Registry
)

func init() {
	defaultRegistry = &registry{
		contexts: make(map[ContextType]ContextConstructor),
	}
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

// Register adds a new backend to the registry
func (r *registry) Register(ct ContextType, constructor ContextConstructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contexts[ct]; exists {
		return errors.Errorf("context type %s already registered", ct)
	}

	r.contexts[ct] = constructor
	return nil
}

// SetDefault sets the default context type
func (r *registry) SetDefault(ct ContextType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contexts[ct]; !exists {
		return errors.Errorf("context type %s not registered", ct)
	}

	r.defaultCt = ct
	return nil
}

// Get opens a ledger of the specified type
func (r *registry) Get(ct ContextType, params map[string]any) (types.Ledger, error) {
	r.mu.RLock()
	constructor, exists := r.contexts[ct]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Errorf("context type %s not found", ct)
	}

	return constructor(params)
}

// GetDefault opens a ledger of the default type
func (r *registry) GetDefault(params map[string]any) (types.Ledger, error) {
	return r.Get(r.DefaultContextType(), params)
}

// DefaultContextType returns the current default context type
func (r *registry) DefaultContextType() ContextType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultCt == "" {
		return DBContextType
	}
	return r.defaultCt
}

// ListRegistered returns a list of all registered context types
func (r *registry) ListRegistered() []ContextType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cts := make([]ContextType, 0, len(r.contexts))
	for ct := range r.contexts {
		cts = append(cts, ct)
	}
	sort.Slice(cts, func(i, j int) bool { return cts[i] < cts[j] })
	return cts
}

// Package level functions that delegate to defaultRegistry

// Register adds a new backend to the registry
func Register(ct ContextType, constructor ContextConstructor) error {
	return GetRegistry().Register(ct, constructor)
}

// SetDefault sets the default context type
func SetDefault(ct ContextType) error {
	return GetRegistry().SetDefault(ct)
}

// Get opens a ledger of the specified type, or of the default type when ct is empty
func Get(ct ContextType, params map[string]any) (types.Ledger, error) {
	if ct == "" {
		ct = GetRegistry().DefaultContextType()
	}
	return GetRegistry().Get(ct, params)
}

// GetDefault opens a ledger of the default type
func GetDefault(params map[string]any) (types.Ledger, error) {
	return GetRegistry().GetDefault(params)
}

// DefaultContextType returns the current default context type
func DefaultContextType() ContextType {
	return GetRegistry().DefaultContextType()
}

// ListRegistered returns a list of all registered context types
func ListRegistered() []ContextType {
	return GetRegistry().ListRegistered()
}
