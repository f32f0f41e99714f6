// Package registry is the naming service: it maps service names to the
// endpoints they can be reached on. Bindings are last-writer-wins.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/schema"
)

// Registry is the naming service contract that clients and servers depend on.
type Registry interface {
	// Rebind binds name to ep, replacing any existing binding.
	Rebind(ctx context.Context, name string, ep schema.Endpoint) error
	// Lookup returns the binding for name. An unbound name fails immediately
	// with a lookup error.
	Lookup(ctx context.Context, name string) (schema.Binding, error)
	// Unbind removes the binding for name. Unbinding an unbound name is a lookup error.
	Unbind(ctx context.Context, name string) error
	// UnbindIf removes the binding for name only while it still points at ep.
	// A name that is unbound or bound elsewhere is a lookup error.
	UnbindIf(ctx context.Context, name string, ep schema.Endpoint) error
	// List returns all bindings sorted by name.
	List(ctx context.Context) ([]schema.Binding, error)
}

// Local is an in-process Registry over a Store.
type Local struct {
	store Store
	now   func() time.Time
}

var _ Registry = (*Local)(nil)

// NewLocal returns a registry backed by store. A nil store means a fresh MemoryStore.
func NewLocal(store Store) *Local {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Local{store: store, now: time.Now}
}

// Rebind implements Registry.
func (l *Local) Rebind(ctx context.Context, name string, ep schema.Endpoint) error {
	if err := schema.ValidateName(name); err != nil {
		return core.NewComputeError(core.ErrorLookup, "rebind", err)
	}
	ep, err := schema.NormalizeEndpoint(ep)
	if err != nil {
		return core.NewComputeError(core.ErrorUnknown, "rebind", err)
	}
	binding := schema.Binding{Name: name, Endpoint: ep, BoundAt: l.now().UTC()}
	if err := l.store.Put(ctx, binding); err != nil {
		return fmt.Errorf("rebind %q: %w", name, err)
	}
	return nil
}

// Lookup implements Registry.
func (l *Local) Lookup(ctx context.Context, name string) (schema.Binding, error) {
	if err := schema.ValidateName(name); err != nil {
		return schema.Binding{}, core.NewComputeError(core.ErrorLookup, "lookup", err)
	}
	binding, err := l.store.Get(ctx, name)
	if errors.Is(err, schema.ErrNotBound) {
		return schema.Binding{}, core.NewComputeError(core.ErrorLookup, "lookup", err)
	}
	if err != nil {
		return schema.Binding{}, fmt.Errorf("lookup %q: %w", name, err)
	}
	return binding, nil
}

// Unbind implements Registry.
func (l *Local) Unbind(ctx context.Context, name string) error {
	if err := schema.ValidateName(name); err != nil {
		return core.NewComputeError(core.ErrorLookup, "unbind", err)
	}
	err := l.store.Delete(ctx, name)
	if errors.Is(err, schema.ErrNotBound) {
		return core.NewComputeError(core.ErrorLookup, "unbind", err)
	}
	if err != nil {
		return fmt.Errorf("unbind %q: %w", name, err)
	}
	return nil
}

// UnbindIf implements Registry.
func (l *Local) UnbindIf(ctx context.Context, name string, ep schema.Endpoint) error {
	if err := schema.ValidateName(name); err != nil {
		return core.NewComputeError(core.ErrorLookup, "unbind", err)
	}
	ep, err := schema.NormalizeEndpoint(ep)
	if err != nil {
		return core.NewComputeError(core.ErrorUnknown, "unbind", err)
	}
	err = l.store.DeleteIf(ctx, name, ep)
	if errors.Is(err, schema.ErrNotBound) {
		return core.NewComputeError(core.ErrorLookup, "unbind", err)
	}
	if err != nil {
		return fmt.Errorf("unbind %q: %w", name, err)
	}
	return nil
}

// List implements Registry.
func (l *Local) List(ctx context.Context) ([]schema.Binding, error) {
	return l.store.List(ctx)
}
