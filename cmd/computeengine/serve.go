package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine"
	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/internal/metrics"
	"pkt.systems/computeengine/internal/version"
	"pkt.systems/computeengine/schema"
	"pkt.systems/computeengine/tasks"
	"pkt.systems/pslog"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var name string
	var listen string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a compute service and publish it in the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				cfg.Server.ServiceName = name
			}
			if cmd.Flags().Changed("listen") {
				ep, err := schema.ParseEndpoint(listen)
				if err != nil {
					return err
				}
				cfg.Server.Network, cfg.Server.Address = ep.Network, ep.Address
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}
			logger := pslog.Ctx(cmd.Context()).With("version", version.Current())

			reg, err := dialRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()

			engine := core.NewEngine(tasks.Catalog(), core.EngineOptions{Observer: metrics.TaskObserver{}})
			logger.Info("compute catalog", "kinds", kindStrings(engine.Catalog().Kinds()))
			server, err := computeengine.New(computeengine.ServerConfig{
				ServiceName: cfg.Server.ServiceName,
				Endpoint:    cfg.Server.Endpoint(),
				MetricsAddr: cfg.Server.MetricsAddr,
			}, computeengine.ServerDeps{Registry: reg, Service: engine})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}
			logger.Info("compute service ready", "service", cfg.Server.ServiceName, "endpoint", server.Endpoint().String(), "registry", reg.Endpoint().String())
			waitErr := server.Wait()

			// Stop before the deferred registry close so the binding can still be removed.
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("server stop failed", "err", err)
				if waitErr == nil {
					return err
				}
			}
			return waitErr
		},
	}
	cmd.Flags().StringVar(&name, "name", schema.ServiceName, "service name to publish under")
	cmd.Flags().StringVar(&listen, "listen", "", "listen endpoint (tcp://host:port or unix:///path), overrides config")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	return cmd
}

func kindStrings(kinds []schema.TaskKind) []string {
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}
