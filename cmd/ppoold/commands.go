package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/push-pool-client/poolClient/config"
	"github.com/pushchain/push-pool-client/poolClient/constant"
	"github.com/pushchain/push-pool-client/poolClient/core"
	"github.com/pushchain/push-pool-client/poolClient/logger"
)

// Set at build time with -ldflags "-X main.Version=... -X main.Commit=...".
var (
	Version = "dev"
	Commit  = ""
)

func InitRootCmd(rootCmd *cobra.Command, v *viper.Viper) {
	rootCmd.AddCommand(initCmd(v))
	rootCmd.AddCommand(startCmd(v))
	rootCmd.AddCommand(submitCmd(v))
	rootCmd.AddCommand(eventsCmd(v))
	rootCmd.AddCommand(queryCmd(v))
	rootCmd.AddCommand(versionCmd())
}

func initCmd(v *viper.Viper) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the node home",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := homeDir(v)
			path := filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			if err := applyOverrides(cfg, v); err != nil {
				return err
			}
			// the signing key is never written to disk
			cfg.SignerPrivateKeyHex = ""

			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func startCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the pool client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log := logger.Init(*cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := core.NewPoolClient(ctx, log, cfg)
			if err != nil {
				return err
			}
			return client.Start()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print ppoold version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:       %s\n", "ppoold")
			fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", Commit)
		},
	}
}
