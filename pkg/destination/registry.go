package destination

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds an adapter from decrypted credential settings.
type Factory func(settings map[string]string) (Adapter, error)

// Registry maps destination names to factories. It is the only process-wide
// destination state; the server registers the built-in destinations during
// startup and the sync worker resolves adapters per work item.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named factory. Returns an error if the name is taken.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("cannot register nil factory for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("destination %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Build constructs an adapter for the named destination.
func (r *Registry) Build(name string, settings map[string]string) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown destination %q", name)
	}
	return factory(settings)
}

// Names returns the registered destination names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}
