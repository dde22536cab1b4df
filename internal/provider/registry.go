package provider

import (
	"fmt"
	"sync"

	"github.com/kilnhq/kiln/internal/ir"
)

// Registry maps resource types to their adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ir.ResourceType]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[ir.ResourceType]Adapter),
	}
}

// Register binds an adapter to a resource type, replacing any previous
// binding for that type.
func (r *Registry) Register(t ir.ResourceType, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[t] = a
}

// Get returns the adapter registered for a resource type.
func (r *Registry) Get(t ir.ResourceType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for resource type %q", t)
	}
	return a, nil
}

// Types returns every resource type with a registered adapter.
func (r *Registry) Types() []ir.ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]ir.ResourceType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
