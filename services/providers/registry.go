package providers

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrAdapterNotFound is returned when no adapter is registered for a provider
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrAdapterAlreadyRegistered is returned when trying to register a duplicate adapter
	ErrAdapterAlreadyRegistered = errors.New("adapter already registered")
)

// Registry maps provider names to their adapters. Adding a provider means
// registering an adapter here; dispatch code never switches on provider names.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under its own name
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	name := adapter.Name()
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return ErrAdapterAlreadyRegistered
	}

	r.adapters[name] = adapter
	return nil
}

// Get retrieves the adapter for a provider name
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[name]
	if !exists {
		return nil, ErrAdapterNotFound
	}

	return adapter, nil
}

// Names returns all registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.adapters)
}
