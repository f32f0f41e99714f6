package schema

import "time"

// ServiceName is the well-known name the compute service is published under.
const ServiceName = "ComputeEngine"

// TaskKind identifies a concrete task variant on the wire.
type TaskKind string

// Network names supported for service endpoints.
const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
)

// Endpoint is where a published service accepts calls.
type Endpoint struct {
	Network string `json:"network" yaml:"network"`
	Address string `json:"address" yaml:"address"`
}

func (e Endpoint) String() string {
	if e.Network == "" && e.Address == "" {
		return ""
	}
	return e.Network + "://" + e.Address
}

// Binding is a registry entry mapping a service name to an endpoint.
type Binding struct {
	Name     string
	Endpoint Endpoint
	BoundAt  time.Time
}
