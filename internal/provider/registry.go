package provider

import (
	"fmt"
	"sync"

	"github.com/glefebvre/listcatalog/internal/models"
)

// Registry holds the adapters available to the engine, in registration order
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Provider]Adapter
	order    []models.Provider
}

// NewRegistry creates a registry holding the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any previous one for the same provider
func (r *Registry) Register(a Adapter) {
	if a == nil {
		panic("provider: nil adapter")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Get returns the adapter for a provider family
func (r *Registry) Get(name models.Provider) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	return a, ok
}

// MustGet returns the adapter or an error naming the missing provider
func (r *Registry) MustGet(name models.Provider) (Adapter, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", name)
	}
	return a, nil
}

// All returns the adapters in registration order
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.adapters[name])
	}
	return out
}

// RandomSource returns the first adapter able to serve the discovery catalog
func (r *Registry) RandomSource() (Adapter, RandomSource, bool) {
	for _, a := range r.All() {
		if rs, ok := a.(RandomSource); ok {
			return a, rs, true
		}
	}
	return nil, nil, false
}

// URLResolver returns the first adapter that accepts the URL
func (r *Registry) URLResolver(rawURL string) (URLResolver, bool) {
	for _, a := range r.All() {
		if ur, ok := a.(URLResolver); ok && ur.CanResolve(rawURL) {
			return ur, true
		}
	}
	return nil, false
}
