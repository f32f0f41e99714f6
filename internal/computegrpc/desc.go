package computegrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"

	"pkt.systems/computeengine/internal/wire"
)

const (
	serviceName       = "computeengine.v1.Compute"
	executeTaskMethod = "ExecuteTask"
)

// computeServer is the handler type for the Compute service descriptor.
type computeServer interface {
	ExecuteTask(ctx context.Context, req *anypb.Any) (*anypb.Any, error)
}

var computeServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*computeServer)(nil),
	Methods: []grpc.MethodDesc{
		wire.Unary(serviceName, executeTaskMethod, func() *anypb.Any { return new(anypb.Any) }, computeServer.ExecuteTask),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "computeengine/v1/compute.proto",
}
