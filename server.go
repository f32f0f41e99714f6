package computeengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/computegrpc"
	"pkt.systems/computeengine/internal/logx"
	"pkt.systems/computeengine/internal/metrics"
	"pkt.systems/computeengine/internal/registry"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// unbindTimeout bounds the best-effort unbind on shutdown.
const unbindTimeout = 5 * time.Second

// Server runs a compute service and keeps it published in a registry.
type Server interface {
	Start(ctx context.Context) error
	Endpoint() schema.Endpoint
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures a compute server process.
type ServerConfig struct {
	// ServiceName is the name the service is published under. Empty means schema.ServiceName.
	ServiceName string
	// Endpoint is where the compute service listens. A tcp port of 0 picks a free port.
	Endpoint schema.Endpoint
	// MetricsAddr optionally serves /metrics and /healthz over HTTP.
	MetricsAddr string
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Registry registry.Registry
	Service  core.ComputeService
}

// New constructs a compute server. Nothing listens until Start.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry dependency is required")
	}
	if deps.Service == nil {
		return nil, errors.New("compute service dependency is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = schema.ServiceName
	}
	if err := schema.ValidateName(cfg.ServiceName); err != nil {
		return nil, err
	}
	ep, err := schema.NormalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint = ep
	return &computeServer{
		cfg:      cfg,
		registry: deps.Registry,
		grpc:     computegrpc.NewServer(computegrpc.Config{Endpoint: ep}, deps.Service),
	}, nil
}

type computeServer struct {
	cfg      ServerConfig
	registry registry.Registry
	grpc     *computegrpc.Server
	logger   pslog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	errCh     chan error
	done      chan struct{}
	published schema.Endpoint
	started   bool
}

// Start listens, waits until the service accepts calls and then publishes it.
// A failed publish stops the listener again.
func (s *computeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.done = make(chan struct{})
	s.started = true
	s.logger = logx.WithService(pslog.Ctx(s.ctx), s.cfg.ServiceName, schema.Endpoint{})
	s.mu.Unlock()

	log := s.logger
	log.Info("server start", "listen", s.cfg.Endpoint.String(), "metrics_addr", s.cfg.MetricsAddr)
	go func() {
		defer close(s.done)
		if err := s.grpc.ListenAndServe(pslog.ContextWithLogger(s.ctx, log)); err != nil {
			log.Error("compute server failed", "err", err)
			s.errCh <- err
		}
	}()
	select {
	case <-s.grpc.Ready():
	case err := <-s.errCh:
		s.cancel()
		return err
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}

	ep := s.grpc.Endpoint()
	if err := Publish(s.ctx, s.registry, s.cfg.ServiceName, ep); err != nil {
		log.Error("server publish failed", "endpoint", ep.String(), "err", err)
		s.cancel()
		<-s.done
		return err
	}
	s.mu.Lock()
	s.published = ep
	s.mu.Unlock()
	log.Info("server published", "endpoint", ep.String())

	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.ListenAndServe(s.ctx, s.cfg.MetricsAddr); err != nil {
				log.Error("metrics server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

// Endpoint returns the published endpoint, or the zero endpoint before Start succeeds.
func (s *computeServer) Endpoint() schema.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// Wait blocks until the server context ends or a component fails.
func (s *computeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop unbinds the service if the registry still points at it and shuts the listener down.
func (s *computeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	published := s.published
	done := s.done
	log := s.logger
	s.published = schema.Endpoint{}
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if published.Address != "" {
		s.unbindIfOwned(log, published)
	}
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}

// unbindIfOwned removes the binding unless another server has since replaced it.
// The registry compares and removes in one step.
func (s *computeServer) unbindIfOwned(log pslog.Logger, ep schema.Endpoint) {
	ctx, cancel := context.WithTimeout(pslog.ContextWithLogger(context.Background(), log), unbindTimeout)
	defer cancel()
	err := s.registry.UnbindIf(ctx, s.cfg.ServiceName, ep)
	switch {
	case core.IsLookup(err):
		log.Info("server unbind skipped", "reason", "no longer bound here", "err", err)
	case err != nil:
		log.Warn("server unbind failed", "err", err)
	default:
		log.Info("server unbound", "endpoint", ep.String())
	}
}

// Serve runs a compute server until ctx is done.
func Serve(ctx context.Context, cfg ServerConfig, deps ServerDeps) error {
	srv, err := New(cfg, deps)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	waitErr := srv.Wait()
	stopCtx, cancel := context.WithTimeout(context.Background(), unbindTimeout)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil && waitErr == nil {
		return err
	}
	return waitErr
}
