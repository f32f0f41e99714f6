package wire

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/grpc/metadata"

	"pkt.systems/computeengine/schema"
)

func TestListenTCPResolvesPort(t *testing.T) {
	listener, ep, err := Listen(schema.Endpoint{Network: "tcp", Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	if strings.HasSuffix(ep.Address, ":0") {
		t.Fatalf("expected resolved port, got %q", ep.Address)
	}
	if ep.Address != listener.Addr().String() {
		t.Fatalf("endpoint %q does not match listener %q", ep.Address, listener.Addr())
	}
}

func TestListenUnixRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.sock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	listener, ep, err := Listen(schema.Endpoint{Network: "unix", Address: path})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	if ep.Address != path {
		t.Fatalf("expected socket path %q, got %q", path, ep.Address)
	}
}

func TestListenRejectsInvalidEndpoint(t *testing.T) {
	if _, _, err := Listen(schema.Endpoint{Network: "udp", Address: "127.0.0.1:0"}); err == nil {
		t.Fatalf("expected error for udp endpoint")
	}
}

func TestCallIDMetadataRoundTrip(t *testing.T) {
	out := OutgoingCallID(context.Background(), "01J0CALL")
	md, ok := metadata.FromOutgoingContext(out)
	if !ok {
		t.Fatalf("expected outgoing metadata")
	}
	in := metadata.NewIncomingContext(context.Background(), md)
	if got := IncomingCallID(in); got != "01J0CALL" {
		t.Fatalf("expected call id, got %q", got)
	}
	if got := IncomingCallID(context.Background()); got != "" {
		t.Fatalf("expected empty call id without metadata, got %q", got)
	}
}
