// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often Run prunes expired rows.
const DefaultSweepInterval = time.Hour

// SweepResult counts the rows removed by one sweep.
type SweepResult struct {
	RefreshTokens int64
	ResetTokens   int64
	RevokedTokens int64
}

// Sweeper prunes rows that can no longer affect any decision: expired refresh
// and reset tokens, and blocklist entries whose access token has expired.
// Correctness never depends on it running.
type Sweeper struct {
	refresh  RefreshTokenRepository
	resets   PasswordResetRepository
	revoked  RevokedTokenRepository
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
	observe  func(SweepResult, error)
}

// NewSweeper creates a Sweeper.
func NewSweeper(
	refresh RefreshTokenRepository,
	resets PasswordResetRepository,
	revoked RevokedTokenRepository,
	clock Clock,
	interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		refresh:  refresh,
		resets:   resets,
		revoked:  revoked,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// OnSweep registers fn to receive the outcome of every sweep Run performs.
// It must be called before Run.
func (s *Sweeper) OnSweep(fn func(SweepResult, error)) {
	s.observe = fn
}

// Sweep removes expired rows once.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		res SweepResult
		err error
	)
	now := s.clock.Now()

	if res.RefreshTokens, err = s.refresh.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("SWEEP_FAILED").With("table", "refresh_tokens").Wrap(err)
	}
	if res.ResetTokens, err = s.resets.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("SWEEP_FAILED").With("table", "password_reset_tokens").Wrap(err)
	}
	if res.RevokedTokens, err = s.revoked.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("SWEEP_FAILED").With("table", "revoked_tokens").Wrap(err)
	}
	return res, nil
}

// Run sweeps every interval until ctx is cancelled. Sweep failures are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if s.observe != nil {
				s.observe(res, err)
			}
			if err != nil {
				s.logger.WarnContext(ctx, "token sweep failed", "error", err.Error())
				continue
			}
			s.logger.DebugContext(ctx, "token sweep complete",
				"refresh_tokens", res.RefreshTokens,
				"reset_tokens", res.ResetTokens,
				"revoked_tokens", res.RevokedTokens)
		}
	}
}
