package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:           "ppoold",
		Short:         "Push Staking Pool Client Daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	registerConfigFlags(rootCmd, v)
	InitRootCmd(rootCmd, v) // add subcommands like `start` and `version`

	return rootCmd
}
