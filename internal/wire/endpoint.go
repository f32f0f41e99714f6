package wire

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"pkt.systems/computeengine/schema"
)

// Listen opens a listener for ep and returns the endpoint clients should use.
// For tcp that is the bound address (so port 0 resolves to the real port); for
// unix a stale socket file at the path is removed first.
func Listen(ep schema.Endpoint) (net.Listener, schema.Endpoint, error) {
	ep, err := schema.NormalizeEndpoint(ep)
	if err != nil {
		return nil, schema.Endpoint{}, err
	}
	if ep.Network == schema.NetworkUnix {
		if err := os.MkdirAll(filepath.Dir(ep.Address), 0o755); err != nil {
			return nil, schema.Endpoint{}, err
		}
		if err := os.Remove(ep.Address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, schema.Endpoint{}, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	listener, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return nil, schema.Endpoint{}, err
	}
	if ep.Network == schema.NetworkTCP {
		ep.Address = listener.Addr().String()
	}
	return listener, ep, nil
}

// Dial creates a lazily connecting gRPC client connection to ep. Connection
// failures surface on the first call rather than here.
func Dial(ep schema.Endpoint, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	ep, err := schema.NormalizeEndpoint(ep)
	if err != nil {
		return nil, err
	}
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, ep.Network, addr)
	}
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	}
	return grpc.NewClient("passthrough:///"+ep.Address, append(base, opts...)...)
}
