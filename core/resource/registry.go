package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/recordbase/core/schema"
)

// Registry owns every registered resource and the collaborators new ones
// are built with. Registration happens at startup; lookups are served
// concurrently afterwards.
type Registry struct {
	opts Options

	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewRegistry returns an empty registry binding the given collaborators.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:      opts,
		resources: map[string]*Resource{},
	}
}

// Register creates the named resource and records it. Registering a name
// twice is a wiring bug and is rejected.
func (reg *Registry) Register(ctx context.Context, name string, s *schema.Schema) (*Resource, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.resources[name]; exists {
		return nil, fmt.Errorf("resource %q is already registered", name)
	}

	r, err := New(ctx, name, s, reg.opts)
	if err != nil {
		return nil, err
	}
	reg.resources[name] = r
	return r, nil
}

// Get returns the named resource, or nil when it was never registered.
func (reg *Registry) Get(name string) *Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.resources[name]
}

// SchemaOf returns the named resource's schema, or nil.
func (reg *Registry) SchemaOf(name string) *schema.Schema {
	if r := reg.Get(name); r != nil {
		return r.Schema()
	}
	return nil
}

// Names returns the registered resource names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.resources))
	for name := range reg.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
