package templates

import (
	"sync"

	"showroom-popup-builder/internal/model"
)

// Registry maps template types to definitions. List preserves registration
// order, which is the display order of the template picker.
type Registry struct {
	mu    sync.RWMutex
	defs  map[model.TemplateType]Definition
	order []model.TemplateType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[model.TemplateType]Definition)}
}

// NewDefaultRegistry registers the shipped definitions.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Contact{})
	r.Register(Product{})
	r.Register(Info{})
	r.Register(Iframe{})
	r.Register(Youtube{})
	return r
}

// Register stores def under its descriptor id. Re-registering an id replaces
// the previous definition and keeps its position.
func (r *Registry) Register(def Definition) {
	id := def.Descriptor().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[id]; !exists {
		r.order = append(r.order, id)
	}
	r.defs[id] = def
}

// Get returns the definition for id. A miss is not an error: callers render
// Unavailable(id) instead.
func (r *Registry) Get(id model.TemplateType) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// List returns the descriptors in registration order.
func (r *Registry) List() []model.TemplateDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TemplateDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id].Descriptor())
	}
	return out
}

// DefaultConfig is a shortcut returning a fresh default configuration for id.
func (r *Registry) DefaultConfig(id model.TemplateType) (model.Config, bool) {
	def, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return def.DefaultConfig(), true
}
