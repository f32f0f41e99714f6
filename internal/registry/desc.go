package registry

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pkt.systems/computeengine/internal/wire"
)

const (
	serviceName    = "computeengine.v1.Registry"
	rebindMethod   = "Rebind"
	lookupMethod   = "Lookup"
	unbindMethod   = "Unbind"
	unbindIfMethod = "UnbindIf"
	listMethod     = "List"
)

// registryServer is the handler type for the Registry service descriptor.
type registryServer interface {
	Rebind(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Unbind(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error)
	UnbindIf(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	List(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

var registryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*registryServer)(nil),
	Methods: []grpc.MethodDesc{
		wire.Unary(serviceName, rebindMethod, func() *structpb.Struct { return new(structpb.Struct) }, registryServer.Rebind),
		wire.Unary(serviceName, lookupMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, registryServer.Lookup),
		wire.Unary(serviceName, unbindMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, registryServer.Unbind),
		wire.Unary(serviceName, unbindIfMethod, func() *structpb.Struct { return new(structpb.Struct) }, registryServer.UnbindIf),
		wire.Unary(serviceName, listMethod, func() *emptypb.Empty { return new(emptypb.Empty) }, registryServer.List),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "computeengine/v1/registry.proto",
}
