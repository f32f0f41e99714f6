package computegrpc

import (
	"context"
	"errors"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/logx"
	"pkt.systems/computeengine/internal/wire"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// Server exposes a core.ComputeService over gRPC. gRPC runs every inbound call
// on its own goroutine; the server adds no queueing or limits of its own.
type Server struct {
	cfg     Config
	service core.ComputeService
	logger  pslog.Logger

	mu       sync.Mutex
	endpoint schema.Endpoint
	ready    chan struct{}
	serving  bool
}

// ErrAlreadyServing is returned when a Server is started a second time.
var ErrAlreadyServing = errors.New("compute server already serving")

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

// NewServer constructs a compute gRPC server.
func NewServer(cfg Config, service core.ComputeService) *Server {
	return &Server{cfg: cfg, service: service, ready: make(chan struct{})}
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

// Serve serves on an existing listener until ctx is done. ep is the endpoint
// reported by Endpoint once serving starts.
func (s *Server) Serve(ctx context.Context, listener net.Listener, ep schema.Endpoint) error {
	if err := s.claim(); err != nil {
		_ = listener.Close()
		return err
	}
	return s.serve(ctx, listener, ep)
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

func (s *Server) serve(ctx context.Context, listener net.Listener, ep schema.Endpoint) error {
	if s.service == nil {
		_ = listener.Close()
		return errors.New("compute service is required")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&computeServiceDesc, s)

	s.mu.Lock()
	s.endpoint = ep
	s.mu.Unlock()
	s.logger.Info("compute grpc listening", "endpoint", ep.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- grpcServer.Serve(listener)
	}()
	close(s.ready)

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		s.logger.Info("compute grpc stopped", "endpoint", ep.String())
		return nil
	case err := <-errCh:
		return err
	}
}

// ExecuteTask is the gRPC handler for computeengine.v1.Compute/ExecuteTask.
func (s *Server) ExecuteTask(ctx context.Context, req *anypb.Any) (*anypb.Any, error) {
	callID := wire.IncomingCallID(ctx)
	log := logx.WithCall(s.log(ctx), callID)
	env, err := fromPBEnvelope(req)
	if err != nil {
		log.Warn("compute grpc envelope rejected", "err", err, "type_url", req.GetTypeUrl())
		return nil, status.Errorf(codes.InvalidArgument, "decode envelope: %v", err)
	}
	ctx = pslog.ContextWithLogger(ctx, log)
	ctx = core.ContextWithCallID(ctx, callID)
	out, err := s.service.ExecuteTask(ctx, env)
	if err != nil {
		return nil, toStatus(err)
	}
	return toPBEnvelope(out), nil
}

func (s *Server) log(ctx context.Context) pslog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return pslog.Ctx(ctx)
}
