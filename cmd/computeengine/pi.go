package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine"
	"pkt.systems/computeengine/tasks/pi"
)

func newPiCmd(flags *globalFlags) *cobra.Command {
	var digits int
	var name string
	cmd := &cobra.Command{
		Use:   "pi",
		Short: "Compute pi on the remote compute service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("name") {
				name = cfg.Server.ServiceName
			}
			reg, err := dialRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()

			value, err := computeengine.Invoke[pi.Decimal](cmd.Context(), reg, name, pi.New(digits), computeengine.InvokeOptions{
				CallTimeout: cfg.Client.CallTimeout(),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "computed pi: %s\n", value)
			return err
		},
	}
	cmd.Flags().IntVarP(&digits, "digits", "d", pi.DefaultDigits, "decimal places to compute")
	cmd.Flags().StringVar(&name, "name", "", "service name to resolve (default from config)")
	return cmd
}
