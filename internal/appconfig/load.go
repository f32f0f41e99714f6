package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/computeengine/schema"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("registry.network", cfg.Registry.Network)
	v.SetDefault("registry.address", cfg.Registry.Address)
	v.SetDefault("registry.db_path", cfg.Registry.DBPath)
	v.SetDefault("registry.lookup_timeout_seconds", cfg.Registry.LookupTimeoutSeconds)
	v.SetDefault("server.service_name", cfg.Server.ServiceName)
	v.SetDefault("server.network", cfg.Server.Network)
	v.SetDefault("server.address", cfg.Server.Address)
	v.SetDefault("server.metrics_addr", cfg.Server.MetricsAddr)
	v.SetDefault("client.call_timeout_seconds", cfg.Client.CallTimeoutSeconds)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile reports a missing file as a path error, not ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that viper cannot express.
func Validate(cfg Config) error {
	if _, err := schema.NormalizeEndpoint(cfg.Registry.Endpoint()); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if _, err := schema.NormalizeEndpoint(cfg.Server.Endpoint()); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := schema.ValidateName(cfg.Server.ServiceName); err != nil {
		return fmt.Errorf("server.service_name: %w", err)
	}
	if cfg.Registry.LookupTimeoutSeconds < 0 {
		return fmt.Errorf("registry.lookup_timeout_seconds must not be negative")
	}
	if cfg.Client.CallTimeoutSeconds < 0 {
		return fmt.Errorf("client.call_timeout_seconds must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Registry.DBPath = expandEnv(cfg.Registry.DBPath)
	if cfg.Registry.Network == schema.NetworkUnix {
		cfg.Registry.Address = expandEnv(cfg.Registry.Address)
	}
	if cfg.Server.Network == schema.NetworkUnix {
		cfg.Server.Address = expandEnv(cfg.Server.Address)
	}
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
