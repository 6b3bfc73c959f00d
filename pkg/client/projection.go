package client

import (
	"sort"
	"sync"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// ProjectionRegistry maps the child types projected into a project on read
// to the spec field that receives them.
type ProjectionRegistry struct {
	mu     sync.RWMutex
	fields map[entity.Type]string
}

// NewProjectionRegistry returns an empty registry.
func NewProjectionRegistry() *ProjectionRegistry {
	return &ProjectionRegistry{fields: make(map[entity.Type]string)}
}

// DefaultProjections returns a registry holding every project-scoped type,
// each attached under its own collection name.
func DefaultProjections() *ProjectionRegistry {
	r := NewProjectionRegistry()
	for _, t := range entity.ContextTypes {
		r.Register(t, string(t))
	}
	return r
}

// Register attaches type t under spec field.
func (r *ProjectionRegistry) Register(t entity.Type, field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fields[t] = field
}

// Field returns the spec field for t.
func (r *ProjectionRegistry) Field(t entity.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[t]
	return f, ok
}

// Types returns the registered types in sorted order.
func (r *ProjectionRegistry) Types() []entity.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]entity.Type, 0, len(r.fields))
	for t := range r.fields {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
