package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"pkt.systems/computeengine/schema"
)

// Catalog enumerates the task variants a compute service accepts.
// Payloads are decoded by kind only; nothing outside the catalog can be executed.
type Catalog struct {
	mu      sync.RWMutex
	entries map[schema.TaskKind]decodeFunc
}

type decodeFunc func(payload []byte) (invocation, error)

// invocation is a decoded task with its result type erased.
type invocation interface {
	run(ctx context.Context) (Envelope, error)
	describe() string
}

type boundTask[R any, T Task[R]] struct {
	task T
}

func (b boundTask[R, T]) run(ctx context.Context) (Envelope, error) {
	result, err := b.task.Execute(ctx)
	if err != nil {
		return Envelope{}, err
	}
	return encodeResult(b.task.Kind(), result)
}

func (b boundTask[R, T]) describe() string {
	if s, ok := any(b.task).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%+v", b.task)
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[schema.TaskKind]decodeFunc)}
}

// Register adds task type T, producing results of type R, to the catalog under
// the kind reported by T's zero value. It panics if the kind is invalid or
// already registered, since both are wiring mistakes.
func Register[R any, T Task[R]](c *Catalog) {
	var zero T
	kind := zero.Kind()
	if err := schema.ValidateTaskKind(kind); err != nil {
		panic(fmt.Sprintf("core: register task: %v", err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[kind]; exists {
		panic(fmt.Sprintf("core: task kind %q registered twice", kind))
	}
	c.entries[kind] = func(payload []byte) (inv invocation, err error) {
		defer func() {
			if r := recover(); r != nil {
				inv, err = nil, fmt.Errorf("decode panicked: %v", r)
			}
		}()
		var task T
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&task); err != nil {
			return nil, err
		}
		return boundTask[R, T]{task: task}, nil
	}
}

// Kinds lists registered task kinds in sorted order.
func (c *Catalog) Kinds() []schema.TaskKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]schema.TaskKind, 0, len(c.entries))
	for kind := range c.entries {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (c *Catalog) decode(env Envelope) (invocation, error) {
	c.mu.RLock()
	decode, ok := c.entries[env.Kind]
	c.mu.RUnlock()
	if !ok {
		return nil, serializationError("decode task", env.Kind, fmt.Errorf("%w: %q", schema.ErrUnknownTaskKind, env.Kind))
	}
	inv, err := decode(env.Payload)
	if err != nil {
		return nil, serializationError("decode task", env.Kind, err)
	}
	return inv, nil
}
