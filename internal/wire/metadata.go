package wire

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// CallIDHeader carries the client's call id so both sides log the same id.
const CallIDHeader = "x-call-id"

// OutgoingCallID attaches id to the outgoing request metadata.
func OutgoingCallID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, CallIDHeader, id)
}

// IncomingCallID extracts the call id sent by the client, if any.
func IncomingCallID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(CallIDHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}
