package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/computeengine/schema"
)

// Store persists bindings. Get and Delete return schema.ErrNotBound for unknown
// names; DeleteIf also returns it when name is bound to another endpoint.
type Store interface {
	Put(ctx context.Context, binding schema.Binding) error
	Get(ctx context.Context, name string) (schema.Binding, error)
	Delete(ctx context.Context, name string) error
	DeleteIf(ctx context.Context, name string, ep schema.Endpoint) error
	List(ctx context.Context) ([]schema.Binding, error)
	Close() error
}

// MemoryStore keeps bindings for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	bindings map[string]schema.Binding
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: make(map[string]schema.Binding)}
}

// Put stores binding, replacing any existing one with the same name.
func (m *MemoryStore) Put(_ context.Context, binding schema.Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[binding.Name] = binding
	return nil
}

// Get returns the binding stored under name.
func (m *MemoryStore) Get(_ context.Context, name string) (schema.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	binding, ok := m.bindings[name]
	if !ok {
		return schema.Binding{}, fmt.Errorf("%w: %q", schema.ErrNotBound, name)
	}
	return binding, nil
}

// Delete removes the binding stored under name.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[name]; !ok {
		return fmt.Errorf("%w: %q", schema.ErrNotBound, name)
	}
	delete(m.bindings, name)
	return nil
}

// DeleteIf removes the binding stored under name only while it points at ep.
func (m *MemoryStore) DeleteIf(_ context.Context, name string, ep schema.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	binding, ok := m.bindings[name]
	if !ok || binding.Endpoint != ep {
		return fmt.Errorf("%w: %q at %s", schema.ErrNotBound, name, ep)
	}
	delete(m.bindings, name)
	return nil
}

// List returns all bindings sorted by name.
func (m *MemoryStore) List(_ context.Context) ([]schema.Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.Binding, 0, len(m.bindings))
	for _, binding := range m.bindings {
		out = append(out, binding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
