package collector

import (
	"sort"
	"sync"

	"github.com/newthinker/swingsim/internal/core"
)

// Registry maps source names to provider factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered source names, sorted
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

// Build creates the provider named by cfg.Source
func (r *Registry) Build(cfg Config) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown data source %q (have %v)", cfg.Source, r.Names())
	}
	return f(cfg)
}
