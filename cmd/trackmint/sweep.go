// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/config"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Prune expired tokens once",
		Long: `Delete expired refresh tokens, expired password reset tokens and
revocation entries whose access token has expired, then exit.`,
		RunE: runSweep,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.close()

	sweeper := auth.NewSweeper(st.refresh, st.resets, st.revoked, nil, cfg.SweepInterval, nil)
	res, err := sweeper.Sweep(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Removed %d refresh tokens, %d reset tokens, %d revoked tokens\n",
		res.RefreshTokens, res.ResetTokens, res.RevokedTokens)
	return nil
}
