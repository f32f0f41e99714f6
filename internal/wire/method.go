// Package wire holds the transport plumbing shared by the compute and registry
// gRPC services: hand-written method descriptors over protobuf well-known
// types, endpoint dial/listen helpers, and call-id metadata propagation.
package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// FullMethod returns the gRPC method path for service and method.
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// Unary builds a unary grpc.MethodDesc for a service implementation of type S.
// newReq allocates the request message the codec decodes into.
func Unary[S any, Req proto.Message, Resp proto.Message](service, method string, newReq func() Req, call func(S, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := FullMethod(service, method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
