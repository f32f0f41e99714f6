package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/computeengine/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Registry      RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Server        ServerConfig   `mapstructure:"server" yaml:"server"`
	Client        ClientConfig   `mapstructure:"client" yaml:"client"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DefaultRegistryPort is the conventional naming service port.
const DefaultRegistryPort = "1099"

// RegistryConfig locates the naming service. The registry command listens on
// it and every other command dials it.
type RegistryConfig struct {
	Network              string `mapstructure:"network" yaml:"network"`
	Address              string `mapstructure:"address" yaml:"address"`
	DBPath               string `mapstructure:"db_path" yaml:"db_path"`
	LookupTimeoutSeconds int    `mapstructure:"lookup_timeout_seconds" yaml:"lookup_timeout_seconds"`
}

// ServerConfig controls the compute service published by the serve command.
type ServerConfig struct {
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	Network     string `mapstructure:"network" yaml:"network"`
	Address     string `mapstructure:"address" yaml:"address"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// ClientConfig controls remote calls made by client commands.
type ClientConfig struct {
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
}

// Endpoint returns the registry endpoint.
func (c RegistryConfig) Endpoint() schema.Endpoint {
	return schema.Endpoint{Network: c.Network, Address: c.Address}
}

// LookupTimeout returns the per-call registry timeout. Zero means the client default.
func (c RegistryConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// Endpoint returns the compute service listen endpoint.
func (c ServerConfig) Endpoint() schema.Endpoint {
	return schema.Endpoint{Network: c.Network, Address: c.Address}
}

// CallTimeout returns the remote call timeout. Zero means no timeout.
func (c ClientConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Registry: RegistryConfig{
			Network:              schema.NetworkTCP,
			Address:              "127.0.0.1:" + DefaultRegistryPort,
			DBPath:               "",
			LookupTimeoutSeconds: 5,
		},
		Server: ServerConfig{
			ServiceName: schema.ServiceName,
			Network:     schema.NetworkTCP,
			Address:     "127.0.0.1:0",
			MetricsAddr: "",
		},
		Client: ClientConfig{
			CallTimeoutSeconds: 0,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".computeengine", "config.yaml"), nil
}
