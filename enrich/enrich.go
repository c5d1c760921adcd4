// Package enrich provides the typed plugin registry for entity enrichment
// services. An entity schema may declare enrichment:{service:<name>}; the
// ingestion core resolves the name through the ontology registry and, when
// a plugin with that name is registered here, applies it. Actual
// enrichment implementations (external lookups, scoring services) live
// outside the core.
package enrich

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kohr2/dashboard-killer-graph-sub005/extract"
)

// Plugin enriches one extracted entity. Enrich must return the entity
// (possibly modified) rather than mutate shared state; returning an error
// leaves the original entity untouched.
type Plugin interface {
	Name() string
	Enrich(ctx context.Context, entity extract.Entity) (extract.Entity, error)
}

// Registry holds plugins keyed by service name. Registration happens at
// startup; resolution is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin under its service name. Registering the same name
// twice is a configuration error.
func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Name() == "" {
		return fmt.Errorf("enrich: plugin must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("enrich: plugin %q already registered", p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Resolve returns the plugin registered under name, if any.
func (r *Registry) Resolve(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Func adapts a plain function to the Plugin interface.
type Func struct {
	ServiceName string
	Fn          func(ctx context.Context, entity extract.Entity) (extract.Entity, error)
}

// Name implements Plugin.
func (f Func) Name() string { return f.ServiceName }

// Enrich implements Plugin.
func (f Func) Enrich(ctx context.Context, entity extract.Entity) (extract.Entity, error) {
	return f.Fn(ctx, entity)
}
