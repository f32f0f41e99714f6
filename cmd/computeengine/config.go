package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine/internal/appconfig"
	"pkt.systems/computeengine/internal/registry"
	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(flags *globalFlags) (appconfig.Config, error) {
	cfg, err := appconfig.Load(flags.cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if flags.registry != "" {
		ep, err := schema.ParseEndpoint(flags.registry)
		if err != nil {
			return appconfig.Config{}, fmt.Errorf("--registry: %w", err)
		}
		cfg.Registry.Network = ep.Network
		cfg.Registry.Address = ep.Address
	}
	return cfg, nil
}

// dialRegistry returns a client for the configured naming service.
func dialRegistry(ctx context.Context, cfg appconfig.Config) (*registry.Client, error) {
	ep := cfg.Registry.Endpoint()
	pslog.Ctx(ctx).Debug("registry dial", "endpoint", ep.String(), "timeout", cfg.Registry.LookupTimeout())
	return registry.Dial(ctx, ep, registry.ClientOptions{Timeout: cfg.Registry.LookupTimeout()})
}

func newInitConfigCmd(flags *globalFlags) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appconfig.WriteDefault(flags.cfgPath, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config written", "path", path)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config file")
	return cmd
}
