package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine/core"
	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	args := applyArgv0Alias(os.Args)
	root := newRootCmd()
	root.SetArgs(args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err, "error_kind", string(core.KindOf(err))).Error("computeengine command failed")
		return 1
	}
	return 0
}

type globalFlags struct {
	cfgPath  string
	registry string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "computeengine",
		Short:         "Run tasks on a remote compute service found through a naming registry",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&flags.cfgPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.registry, "registry", "", "registry endpoint (tcp://host:port or unix:///path), overrides config")

	root.AddCommand(newRegistryCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newPiCmd(flags))
	root.AddCommand(newLookupCmd(flags))
	root.AddCommand(newListCmd(flags))
	root.AddCommand(newUnbindCmd(flags))
	root.AddCommand(newInitConfigCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

func argv0Alias(base string) string {
	switch base {
	case "ce-registry", "computeengine-registry":
		return "registry"
	case "ce-pi":
		return "pi"
	default:
		return ""
	}
}

func applyArgv0Alias(args []string) []string {
	if len(args) == 0 {
		return args
	}
	alias := argv0Alias(filepath.Base(args[0]))
	if alias == "" {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], alias)
	out = append(out, args[1:]...)
	return out
}
