package registry

import (
	"context"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pkt.systems/computeengine/internal/metrics"
	"pkt.systems/computeengine/internal/wire"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// ServerConfig controls the naming service listener.
type ServerConfig struct {
	Endpoint schema.Endpoint
}

// Server exposes a Registry over gRPC.
type Server struct {
	cfg      ServerConfig
	registry Registry
	logger   pslog.Logger

	mu       sync.Mutex
	endpoint schema.Endpoint
	ready    chan struct{}
	serving  bool
}

// ErrAlreadyServing is returned when a Server is started a second time.
var ErrAlreadyServing = errors.New("registry server already serving")

// claim marks the server as serving; a Server serves at most once.
func (s *Server) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serving {
		return ErrAlreadyServing
	}
	s.serving = true
	return nil
}

// NewServer constructs a naming service over registry.
func NewServer(cfg ServerConfig, registry Registry) *Server {
	return &Server{cfg: cfg, registry: registry, ready: make(chan struct{})}
}

// ListenAndServe listens on the configured endpoint and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.claim(); err != nil {
		return err
	}
	listener, ep, err := wire.Listen(s.cfg.Endpoint)
	if err != nil {
		return err
	}
	return s.serve(ctx, listener, ep)
}

// Serve serves on an existing listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener, ep schema.Endpoint) error {
	if err := s.claim(); err != nil {
		_ = listener.Close()
		return err
	}
	return s.serve(ctx, listener, ep)
}

func (s *Server) serve(ctx context.Context, listener net.Listener, ep schema.Endpoint) error {
	if s.registry == nil {
		_ = listener.Close()
		return errors.New("registry is required")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&registryServiceDesc, s)

	s.mu.Lock()
	s.endpoint = ep
	s.mu.Unlock()
	s.logger.Info("registry grpc listening", "endpoint", ep.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()
	close(s.ready)

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		s.logger.Info("registry grpc stopped", "endpoint", ep.String())
		return nil
	case err := <-errCh:
		return err
	}
}

// Ready is closed once the server accepts calls.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Endpoint returns the endpoint the server is reachable on after Ready.
func (s *Server) Endpoint() schema.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Rebind binds a name to an endpoint, replacing any prior binding.
func (s *Server) Rebind(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	b, err := fromPBBinding(req)
	if err != nil {
		metrics.ObserveRegistry(rebindMethod, err)
		return nil, status.Errorf(codes.InvalidArgument, "decode binding: %v", err)
	}
	err = s.registry.Rebind(ctx, b.Name, b.Endpoint)
	metrics.ObserveRegistry(rebindMethod, err)
	if err != nil {
		s.log(ctx).Warn("registry rebind rejected", "name", b.Name, "err", err)
		return nil, toStatus(err)
	}
	s.log(ctx).Info("registry rebind", "name", b.Name, "endpoint", b.Endpoint.String())
	return &emptypb.Empty{}, nil
}

// Lookup returns the binding for a name.
func (s *Server) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := req.GetValue()
	b, err := s.registry.Lookup(ctx, name)
	metrics.ObserveRegistry(lookupMethod, err)
	if err != nil {
		s.log(ctx).Debug("registry lookup miss", "name", name, "err", err)
		return nil, toStatus(err)
	}
	s.log(ctx).Debug("registry lookup", "name", name, "endpoint", b.Endpoint.String())
	out, err := toPBBinding(b)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode binding: %v", err)
	}
	return out, nil
}

// Unbind removes the binding for a name.
func (s *Server) Unbind(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	name := req.GetValue()
	err := s.registry.Unbind(ctx, name)
	metrics.ObserveRegistry(unbindMethod, err)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log(ctx).Info("registry unbind", "name", name)
	return &emptypb.Empty{}, nil
}

// UnbindIf removes the binding for a name only while it points at the given endpoint.
func (s *Server) UnbindIf(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	b, err := fromPBBinding(req)
	if err != nil {
		metrics.ObserveRegistry(unbindIfMethod, err)
		return nil, status.Errorf(codes.InvalidArgument, "decode binding: %v", err)
	}
	err = s.registry.UnbindIf(ctx, b.Name, b.Endpoint)
	metrics.ObserveRegistry(unbindIfMethod, err)
	if err != nil {
		s.log(ctx).Debug("registry conditional unbind skipped", "name", b.Name, "endpoint", b.Endpoint.String(), "err", err)
		return nil, toStatus(err)
	}
	s.log(ctx).Info("registry unbind", "name", b.Name, "endpoint", b.Endpoint.String())
	return &emptypb.Empty{}, nil
}

// List returns every binding.
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	bindings, err := s.registry.List(ctx)
	metrics.ObserveRegistry(listMethod, err)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(bindings))}
	for _, b := range bindings {
		msg, err := toPBBinding(b)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode binding: %v", err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(msg))
	}
	return out, nil
}

func (s *Server) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}
