package provider

import (
	"fmt"
	"sync"

	"github.com/codediagram/backend/pkg/types"
)

// Registry is a coarse-locked, process-wide map of provider id -> Provider,
// grounded on the teacher's registry.go idiom.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds a registry seeded with the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// IDs returns every registered provider id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// AllModels returns every model offered by every registered provider.
func (r *Registry) AllModels() []types.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var models []types.Model
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}
	return models
}

// ErrUnknownProvider is returned by Get-based lookups that fail.
func ErrUnknownProvider(id string) error {
	return fmt.Errorf("provider: unknown provider %q", id)
}
