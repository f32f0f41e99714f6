package computegrpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/schema"
)

// echoService returns the payload it was given, tagged with the same kind.
type echoService struct {
	callIDs chan string
}

func (s echoService) ExecuteTask(ctx context.Context, env core.Envelope) (core.Envelope, error) {
	s.callIDs <- core.CallIDFromContext(ctx)
	return env, nil
}

func TestServeOnBufconnPropagatesCallID(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	svc := echoService{callIDs: make(chan string, 1)}
	srv := NewServer(Config{}, svc)
	ep := schema.Endpoint{Network: schema.NetworkTCP, Address: "bufnet"}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, lis, ep) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	<-srv.Ready()
	if srv.Endpoint() != ep {
		t.Fatalf("expected endpoint %v, got %v", ep, srv.Endpoint())
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client := &Client{conn: conn, endpoint: ep}
	t.Cleanup(func() { _ = client.Close() })

	callCtx := core.ContextWithCallID(context.Background(), "01HZBUFCONN")
	in := core.Envelope{Kind: "test.echo", Payload: []byte(`{"n":1}`)}
	out, err := client.ExecuteTask(callCtx, in)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Kind != in.Kind || string(out.Payload) != string(in.Payload) {
		t.Fatalf("unexpected echo %+v", out)
	}
	if got := <-svc.callIDs; got != "01HZBUFCONN" {
		t.Fatalf("expected call id to reach the server, got %q", got)
	}
}

func TestServeTwiceIsRejected(t *testing.T) {
	srv := NewServer(Config{}, echoService{callIDs: make(chan string, 1)})
	ep := schema.Endpoint{Network: schema.NetworkTCP, Address: "bufnet"}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, bufconn.Listen(1<<20), ep) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	<-srv.Ready()

	if err := srv.Serve(ctx, bufconn.Listen(1<<20), ep); !errors.Is(err, ErrAlreadyServing) {
		t.Fatalf("expected ErrAlreadyServing from Serve, got %v", err)
	}
	if err := srv.ListenAndServe(ctx); !errors.Is(err, ErrAlreadyServing) {
		t.Fatalf("expected ErrAlreadyServing from ListenAndServe, got %v", err)
	}
}
