package main

import (
	"github.com/spf13/cobra"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	opts := &applyOptions{dryRun: true}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes an apply would make without touching the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConverge(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	addContainerModeFlags(cmd, opts)

	return cmd
}
