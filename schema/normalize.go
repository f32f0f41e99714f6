package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateName ensures a service name is non-empty and free of whitespace.
// Names are case-sensitive and are never normalized.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// ValidateTaskKind ensures a task kind matches [a-z0-9._-].
func ValidateTaskKind(kind TaskKind) error {
	raw := string(kind)
	if raw == "" {
		return ErrInvalidTaskKind
	}
	for _, r := range raw {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		return fmt.Errorf("%w: %q", ErrInvalidTaskKind, raw)
	}
	return nil
}

// NormalizeEndpoint trims and validates an endpoint. The network is lowercased.
func NormalizeEndpoint(ep Endpoint) (Endpoint, error) {
	out := Endpoint{
		Network: strings.ToLower(strings.TrimSpace(ep.Network)),
		Address: strings.TrimSpace(ep.Address),
	}
	switch out.Network {
	case NetworkTCP, NetworkUnix:
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported network %q", ErrInvalidEndpoint, ep.Network)
	}
	if out.Address == "" {
		return Endpoint{}, fmt.Errorf("%w: address is required", ErrInvalidEndpoint)
	}
	return out, nil
}

// ParseEndpoint parses "tcp://host:port", "unix:///path" or a bare "host:port"
// (which means tcp) into a normalized endpoint.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	network, address, found := strings.Cut(raw, "://")
	if !found {
		network, address = NetworkTCP, raw
	}
	return NormalizeEndpoint(Endpoint{Network: network, Address: address})
}
