package computegrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/logx"
	"pkt.systems/computeengine/internal/wire"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// Client is a handle to a remote compute service. It implements core.ComputeService.
type Client struct {
	conn     *grpc.ClientConn
	endpoint schema.Endpoint
	opts     ClientOptions
}

var _ core.ComputeService = (*Client)(nil)

// Dial creates a handle for the compute service at ep. No connection is made
// until the first call.
func Dial(ctx context.Context, ep schema.Endpoint, opts ClientOptions) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := wire.Dial(ep)
	if err != nil {
		return nil, core.NewComputeError(core.ErrorConnectivity, "dial", err)
	}
	return &Client{conn: conn, endpoint: ep, opts: opts}, nil
}

// Endpoint returns the endpoint this handle calls.
func (c *Client) Endpoint() schema.Endpoint {
	return c.endpoint
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ExecuteTask ships env to the remote service and blocks for the result.
func (c *Client) ExecuteTask(ctx context.Context, env core.Envelope) (core.Envelope, error) {
	if c.conn == nil {
		return core.Envelope{}, core.NewComputeError(core.ErrorConnectivity, "execute task", errors.New("compute client not initialized"))
	}
	callID := core.CallIDFromContext(ctx)
	if callID == "" {
		callID = core.NewCallID()
	}
	log := logx.WithCall(pslog.Ctx(ctx), callID).With("task_kind", string(env.Kind), "endpoint", c.endpoint.String())
	log.Debug("compute grpc call start", "payload_bytes", len(env.Payload))
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	ctx = wire.OutgoingCallID(ctx, callID)

	out := new(anypb.Any)
	if err := c.conn.Invoke(ctx, wire.FullMethod(serviceName, executeTaskMethod), toPBEnvelope(env), out); err != nil {
		logGRPCError(log, "compute grpc call failed", err)
		return core.Envelope{}, wrapCallError("execute task", err)
	}
	result, err := fromPBEnvelope(out)
	if err != nil {
		return core.Envelope{}, &core.ComputeError{Kind: core.ErrorSerialization, Op: "execute task", TaskKind: env.Kind, Err: err}
	}
	log.Debug("compute grpc call done", "result_bytes", len(result.Payload))
	return result, nil
}
