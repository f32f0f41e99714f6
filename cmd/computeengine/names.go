package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/computeengine/schema"
)

func newLookupCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Show the endpoint a name is bound to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg, err := dialRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()
			binding, err := reg.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printBinding(cmd.OutOrStdout(), binding)
		},
	}
}

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registry bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg, err := dialRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()
			bindings, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(bindings) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no bindings")
				return err
			}
			for _, binding := range bindings {
				if err := printBinding(cmd.OutOrStdout(), binding); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newUnbindCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unbind <name>",
		Short: "Remove a registry binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg, err := dialRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = reg.Close() }()
			if err := reg.Unbind(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unbound %s\n", args[0])
			return err
		},
	}
}

func printBinding(w io.Writer, b schema.Binding) error {
	bound := "-"
	if !b.BoundAt.IsZero() {
		bound = b.BoundAt.Local().Format(time.RFC3339)
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name, b.Endpoint.String(), bound)
	return err
}
