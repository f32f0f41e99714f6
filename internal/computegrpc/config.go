package computegrpc

import (
	"time"

	"pkt.systems/computeengine/schema"
)

// Config controls the compute gRPC server setup.
type Config struct {
	Endpoint schema.Endpoint
}

// ClientOptions controls a compute client handle.
type ClientOptions struct {
	// CallTimeout bounds each ExecuteTask call. Zero means the call blocks until
	// the server answers or the caller's context ends.
	CallTimeout time.Duration
}
