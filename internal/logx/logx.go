package logx

import (
	"context"

	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// WithCall annotates the logger with the call id if present.
func WithCall(log pslog.Logger, callID string) pslog.Logger {
	if callID != "" {
		log = log.With("call_id", callID)
	}
	return log
}

// WithService annotates the logger with the service name and endpoint when available.
func WithService(log pslog.Logger, name string, ep schema.Endpoint) pslog.Logger {
	if name != "" {
		log = log.With("service", name)
	}
	if ep.Address != "" {
		log = log.With("endpoint", ep.String())
	}
	return log
}

// ContextWithCall attaches a call-annotated logger to the context.
func ContextWithCall(ctx context.Context, callID string) context.Context {
	if ctx == nil || callID == "" {
		return ctx
	}
	return pslog.ContextWithLogger(ctx, WithCall(pslog.Ctx(ctx), callID))
}
