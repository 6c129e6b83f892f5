// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/trackmint/trackmint/internal/config"
	"github.com/trackmint/trackmint/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the TrackMint CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackmint",
		Short: "TrackMint - personal finance tracking",
		Long: `TrackMint tracks income, expenses and budgets. This binary runs the
authentication service: accounts, sessions and password resets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file path (default: "+xdg.ConfigFileName+" in $XDG_CONFIG_HOME/trackmint, if present)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// loadConfig reads and validates configuration for cmd, whose flags must
// have been registered with config.RegisterFlags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(cmd.Flags(), path, os.Getenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "validate configuration").Wrap(err)
	}
	return cfg, nil
}
