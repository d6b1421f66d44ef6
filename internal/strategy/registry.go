package strategy

import (
	"fmt"
	"sort"

	"github.com/newthinker/swingsim/internal/core"
)

// Registry manages the named entry conditions available to a gate.
type Registry struct {
	conditions map[string]Condition
	order      []string
}

// NewRegistry creates a registry holding the built-in conditions.
func NewRegistry() *Registry {
	r := &Registry{conditions: make(map[string]Condition)}
	for _, c := range Builtin() {
		r.Register(c)
	}
	return r
}

// Register adds a condition, replacing any with the same name.
func (r *Registry) Register(c Condition) {
	if _, exists := r.conditions[c.Name()]; !exists {
		r.order = append(r.order, c.Name())
	}
	r.conditions[c.Name()] = c
}

// Get retrieves a condition by name
func (r *Registry) Get(name string) (Condition, bool) {
	c, ok := r.conditions[name]
	return c, ok
}

// All returns every registered condition in registration order.
func (r *Registry) All() []Condition {
	result := make([]Condition, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.conditions[name])
	}
	return result
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Select resolves names into conditions, keeping the given order.
func (r *Registry) Select(names []string) ([]Condition, error) {
	result := make([]Condition, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		c, ok := r.conditions[name]
		if !ok {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown entry condition %q", name))
		}
		seen[name] = true
		result = append(result, c)
	}
	return result, nil
}
