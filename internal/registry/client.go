package registry

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/wire"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// DefaultTimeout bounds each naming service call unless overridden.
const DefaultTimeout = 5 * time.Second

// ClientOptions controls a naming service client.
type ClientOptions struct {
	// Timeout bounds each registry call. Zero selects DefaultTimeout; a
	// negative value disables the bound.
	Timeout time.Duration
}

// Client talks to a remote naming service. It implements Registry.
type Client struct {
	conn     *grpc.ClientConn
	endpoint schema.Endpoint
	timeout  time.Duration
}

var _ Registry = (*Client)(nil)

// Dial creates a client for the naming service at ep. No connection is made
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
		return nil, core.NewComputeError(core.ErrorConnectivity, "dial registry", err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, endpoint: ep, timeout: timeout}, nil
}

// Endpoint returns the naming service endpoint.
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

// Rebind implements Registry.
func (c *Client) Rebind(ctx context.Context, name string, ep schema.Endpoint) error {
	if _, err := schema.NormalizeEndpoint(ep); err != nil {
		return core.NewComputeError(core.ErrorUnknown, "rebind", err)
	}
	req, err := toPBBinding(schema.Binding{Name: name, Endpoint: ep})
	if err != nil {
		return core.NewComputeError(core.ErrorSerialization, "rebind", err)
	}
	return c.invoke(ctx, rebindMethod, req, new(emptypb.Empty))
}

// Lookup implements Registry.
func (c *Client) Lookup(ctx context.Context, name string) (schema.Binding, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, lookupMethod, wrapperspb.String(name), out); err != nil {
		return schema.Binding{}, err
	}
	b, err := fromPBBinding(out)
	if err != nil {
		return schema.Binding{}, core.NewComputeError(core.ErrorSerialization, "lookup", err)
	}
	return b, nil
}

// Unbind implements Registry.
func (c *Client) Unbind(ctx context.Context, name string) error {
	return c.invoke(ctx, unbindMethod, wrapperspb.String(name), new(emptypb.Empty))
}

// UnbindIf implements Registry.
func (c *Client) UnbindIf(ctx context.Context, name string, ep schema.Endpoint) error {
	req, err := toPBBinding(schema.Binding{Name: name, Endpoint: ep})
	if err != nil {
		return core.NewComputeError(core.ErrorSerialization, "unbind", err)
	}
	return c.invoke(ctx, unbindIfMethod, req, new(emptypb.Empty))
}

// List implements Registry.
func (c *Client) List(ctx context.Context) ([]schema.Binding, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, listMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	bindings := make([]schema.Binding, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		b, err := fromPBBinding(v.GetStructValue())
		if err != nil {
			return nil, core.NewComputeError(core.ErrorSerialization, "list", err)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.conn == nil {
		return core.NewComputeError(core.ErrorConnectivity, method, errors.New("registry client not initialized"))
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.conn.Invoke(ctx, wire.FullMethod(serviceName, method), in, out); err != nil {
		pslog.Ctx(ctx).Debug("registry call failed", "method", method, "endpoint", c.endpoint.String(), "err", err)
		return wrapRegistryError(opName(method), err)
	}
	return nil
}

func opName(method string) string {
	switch method {
	case rebindMethod:
		return "rebind"
	case lookupMethod:
		return "lookup"
	case unbindMethod, unbindIfMethod:
		return "unbind"
	default:
		return "list"
	}
}
