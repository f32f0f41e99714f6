package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine/internal/metrics"
	"pkt.systems/computeengine/internal/registry"
	"pkt.systems/computeengine/internal/version"
	"pkt.systems/pslog"
)

func newRegistryCmd(flags *globalFlags) *cobra.Command {
	var dbPath string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Run the naming registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Registry.DBPath = dbPath
			}
			logger := pslog.Ctx(cmd.Context()).With("version", version.Current())

			var store registry.Store
			if cfg.Registry.DBPath == "" {
				logger.Info("registry store selected", "store", "memory")
				store = registry.NewMemoryStore()
			} else {
				logger.Info("registry store selected", "store", "sqlite", "path", cfg.Registry.DBPath)
				sqlite, err := registry.NewSQLiteStore(cfg.Registry.DBPath)
				if err != nil {
					return err
				}
				store = sqlite
			}
			defer func() { _ = store.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if metricsAddr != "" {
				go func() {
					if err := metrics.ListenAndServe(ctx, metricsAddr); err != nil {
						logger.Error("metrics server failed", "err", err)
					}
				}()
			}
			srv := registry.NewServer(registry.ServerConfig{Endpoint: cfg.Registry.Endpoint()}, registry.NewLocal(store))
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "persist bindings in this SQLite database (default: in memory)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	return cmd
}
