package providers

import (
	"fmt"
	"sync"
)

// Registry manages available vision providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]VisionProvider
	defaultID string
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]VisionProvider),
	}
}

// Register adds a provider; the first registered becomes the default.
func (r *Registry) Register(id string, p VisionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = p
	if r.defaultID == "" {
		r.defaultID = id
	}
}

// Get returns a provider by ID
func (r *Registry) Get(id string) VisionProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// Default returns the default provider or an error when none is registered
func (r *Registry) Default() (VisionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return nil, fmt.Errorf("no vision provider registered")
	}
	return r.providers[r.defaultID], nil
}
