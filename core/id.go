package core

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type callIDKey struct{}

// NewCallID returns a fresh identifier for a client invocation.
func NewCallID() string {
	return ulid.Make().String()
}

// ContextWithCallID stores the call id on the context so transports can propagate it.
func ContextWithCallID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallIDFromContext returns the call id stored on ctx, if any.
func CallIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}
