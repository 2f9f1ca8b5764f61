package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose   bool
	statePath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "steady",
		Short:         "Steady converges a Linux host toward a declared configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.statePath, "state", "", "Override the state file location")

	cmd.AddCommand(newApplyCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
