package computeengine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/registry"
	"pkt.systems/computeengine/schema"
	"pkt.systems/computeengine/tasks"
	"pkt.systems/computeengine/tasks/pi"
)

type boomTask struct {
	Reason string `json:"reason"`
}

func (boomTask) Kind() schema.TaskKind { return "test.boom" }

func (t boomTask) Execute(context.Context) (int, error) { return 0, errors.New(t.Reason) }

type whoTask struct{}

func (whoTask) Kind() schema.TaskKind { return "test.who" }

func (whoTask) Execute(context.Context) (string, error) { return "", nil }

// taggedService answers whoTask with its tag and delegates everything else.
type taggedService struct {
	tag   string
	inner core.ComputeService
	calls atomic.Int32
}

func (s *taggedService) ExecuteTask(ctx context.Context, env core.Envelope) (core.Envelope, error) {
	s.calls.Add(1)
	if env.Kind == "test.who" {
		return core.Envelope{Kind: env.Kind, Payload: []byte(`"` + s.tag + `"`)}, nil
	}
	return s.inner.ExecuteTask(ctx, env)
}

func testEngine() *core.Engine {
	c := tasks.Catalog()
	core.Register[int, boomTask](c)
	return core.NewEngine(c, core.EngineOptions{})
}

func unixEndpoint(t *testing.T, name string) schema.Endpoint {
	t.Helper()
	return schema.Endpoint{Network: schema.NetworkUnix, Address: filepath.Join(t.TempDir(), name)}
}

func startComputeServer(t *testing.T, reg registry.Registry, svc core.ComputeService) Server {
	t.Helper()
	srv, err := New(ServerConfig{Endpoint: unixEndpoint(t, "engine.sock")}, ServerDeps{Registry: reg, Service: svc})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			t.Errorf("stop server: %v", err)
		}
	})
	return srv
}

func TestPublishResolveRoundTrip(t *testing.T) {
	reg := registry.NewLocal(nil)
	svc := &taggedService{tag: "only", inner: testEngine()}
	srv := startComputeServer(t, reg, svc)

	binding, err := reg.Lookup(context.Background(), schema.ServiceName)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if binding.Endpoint != srv.Endpoint() {
		t.Fatalf("expected binding %v, got %v", srv.Endpoint(), binding.Endpoint)
	}
	got, err := Invoke[string](context.Background(), reg, schema.ServiceName, whoTask{}, InvokeOptions{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if got != "only" {
		t.Fatalf("expected call routed to published service, got %q", got)
	}
	if svc.calls.Load() != 1 {
		t.Fatalf("expected 1 call on service, got %d", svc.calls.Load())
	}
}

func TestRepublishRoutesToNewest(t *testing.T) {
	reg := registry.NewLocal(nil)
	oldSvc := &taggedService{tag: "old", inner: testEngine()}
	newSvc := &taggedService{tag: "new", inner: testEngine()}
	startComputeServer(t, reg, oldSvc)
	startComputeServer(t, reg, newSvc)

	for i := 0; i < 3; i++ {
		got, err := Invoke[string](context.Background(), reg, schema.ServiceName, whoTask{}, InvokeOptions{})
		if err != nil {
			t.Fatalf("invoke: %v", err)
		}
		if got != "new" {
			t.Fatalf("expected newest binding to win, got %q", got)
		}
	}
	if oldSvc.calls.Load() != 0 {
		t.Fatalf("expected replaced service to receive no calls, got %d", oldSvc.calls.Load())
	}
}

func TestStopUnbindsOnlyOwnBinding(t *testing.T) {
	reg := registry.NewLocal(nil)
	first, err := New(ServerConfig{Endpoint: unixEndpoint(t, "first.sock")}, ServerDeps{Registry: reg, Service: testEngine()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	second := startComputeServer(t, reg, testEngine())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := first.Stop(ctx); err != nil {
		t.Fatalf("stop first: %v", err)
	}
	binding, err := reg.Lookup(context.Background(), schema.ServiceName)
	if err != nil {
		t.Fatalf("expected second binding to survive: %v", err)
	}
	if binding.Endpoint != second.Endpoint() {
		t.Fatalf("expected %v, got %v", second.Endpoint(), binding.Endpoint)
	}
	if err := second.Stop(ctx); err != nil {
		t.Fatalf("stop second: %v", err)
	}
	if _, err := reg.Lookup(context.Background(), schema.ServiceName); !core.IsLookup(err) {
		t.Fatalf("expected binding removed after owner stopped, got %v", err)
	}
}

func TestResolveUnboundIsLookupError(t *testing.T) {
	reg := registry.NewLocal(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Resolve(ctx, reg, schema.ServiceName, ResolveOptions{})
	if !core.IsLookup(err) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	call := core.NewCall("")
	_, err = Invoke[pi.Decimal](ctx, reg, schema.ServiceName, pi.New(10), InvokeOptions{Call: call})
	if !core.IsLookup(err) {
		t.Fatalf("expected lookup error from invoke, got %v", err)
	}
	if call.State() != core.CallFailed {
		t.Fatalf("expected failed call, got %s", call.State())
	}
}

func TestRemoteFailureThenIndependentCall(t *testing.T) {
	reg := registry.NewLocal(nil)
	startComputeServer(t, reg, testEngine())
	ctx := context.Background()

	_, err := Invoke[int](ctx, reg, schema.ServiceName, boomTask{Reason: "divide by zero"}, InvokeOptions{})
	if !core.IsRemoteExecution(err) {
		t.Fatalf("expected remote execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "divide by zero") {
		t.Fatalf("expected remote message in %q", err.Error())
	}
	got, err := Invoke[pi.Decimal](ctx, reg, schema.ServiceName, pi.New(5), InvokeOptions{})
	if err != nil {
		t.Fatalf("follow-up invoke: %v", err)
	}
	if got != "3.14159" {
		t.Fatalf("expected 3.14159, got %q", got)
	}
}

func TestInvokeRecordsCallLifecycle(t *testing.T) {
	reg := registry.NewLocal(nil)
	startComputeServer(t, reg, testEngine())
	call := core.NewCall("")
	if _, err := Invoke[pi.Decimal](context.Background(), reg, schema.ServiceName, pi.New(3), InvokeOptions{Call: call}); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if call.State() != core.CallSucceeded {
		t.Fatalf("expected succeeded, got %s", call.State())
	}
	if call.Err() != nil {
		t.Fatalf("expected no error, got %v", call.Err())
	}
}

func TestInvokeNilTask(t *testing.T) {
	reg := registry.NewLocal(nil)
	call := core.NewCall("")
	_, err := Invoke[int](context.Background(), reg, schema.ServiceName, nil, InvokeOptions{Call: call})
	if !core.IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if call.State() != core.CallIdle {
		t.Fatalf("expected call left idle, got %s", call.State())
	}
}

// rebindingRegistry lets another publisher take over name just before an unbind.
type rebindingRegistry struct {
	registry.Registry
	takeover schema.Endpoint
}

func (r *rebindingRegistry) UnbindIf(ctx context.Context, name string, ep schema.Endpoint) error {
	if err := r.Registry.Rebind(ctx, name, r.takeover); err != nil {
		return err
	}
	return r.Registry.UnbindIf(ctx, name, ep)
}

func TestStopKeepsBindingReplacedDuringUnbind(t *testing.T) {
	takeover := schema.Endpoint{Network: schema.NetworkTCP, Address: "127.0.0.1:4711"}
	reg := &rebindingRegistry{Registry: registry.NewLocal(nil), takeover: takeover}
	srv, err := New(ServerConfig{Endpoint: unixEndpoint(t, "engine.sock")}, ServerDeps{Registry: reg, Service: testEngine()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	binding, err := reg.Lookup(context.Background(), schema.ServiceName)
	if err != nil {
		t.Fatalf("expected takeover binding to survive: %v", err)
	}
	if binding.Endpoint != takeover {
		t.Fatalf("expected %v, got %v", takeover, binding.Endpoint)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(ServerConfig{Endpoint: schema.Endpoint{Network: "tcp", Address: "127.0.0.1:0"}}, ServerDeps{Service: testEngine()}); err == nil {
		t.Fatalf("expected missing registry error")
	}
	if _, err := New(ServerConfig{Endpoint: schema.Endpoint{Network: "tcp", Address: "127.0.0.1:0"}}, ServerDeps{Registry: registry.NewLocal(nil)}); err == nil {
		t.Fatalf("expected missing service error")
	}
	if _, err := New(ServerConfig{ServiceName: "bad name", Endpoint: schema.Endpoint{Network: "tcp", Address: "127.0.0.1:0"}}, ServerDeps{Registry: registry.NewLocal(nil), Service: testEngine()}); err == nil {
		t.Fatalf("expected invalid name error")
	}
}

func TestServeUntilCanceled(t *testing.T) {
	reg := registry.NewLocal(nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Serve(ctx, ServerConfig{ServiceName: "Primes", Endpoint: unixEndpoint(t, "serve.sock")}, ServerDeps{Registry: reg, Service: testEngine()})
	}()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := reg.Lookup(context.Background(), "Primes"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("service never published")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not return")
	}
	if _, err := reg.Lookup(context.Background(), "Primes"); !core.IsLookup(err) {
		t.Fatalf("expected unbind on shutdown, got %v", err)
	}
}
