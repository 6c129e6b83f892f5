// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/auth/memory"
	"github.com/trackmint/trackmint/internal/auth/postgres"
	"github.com/trackmint/trackmint/internal/config"
	"github.com/trackmint/trackmint/internal/notify"
	"github.com/trackmint/trackmint/internal/observability"
	"github.com/trackmint/trackmint/internal/store"
)

// smtpMaxRetries bounds SMTP retries after the first attempt.
const smtpMaxRetries = 3

// storage bundles the repositories of one backend.
type storage struct {
	users   auth.UserRepository
	refresh auth.RefreshTokenRepository
	resets  auth.PasswordResetRepository
	revoked auth.RevokedTokenRepository
	tx      auth.Transactor
	ready   observability.ReadinessChecker
	close   func()
}

// openStorage connects to the backend selected by cfg.Storage.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		mem := memory.NewStore()
		return &storage{
			users:   mem.Users(),
			refresh: mem.RefreshTokens(),
			resets:  mem.PasswordResets(),
			revoked: mem.RevokedTokens(),
			tx:      mem,
			ready:   func() bool { return true },
			close:   func() {},
		}, nil
	}

	pool, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{})
	if err != nil {
		return nil, err
	}
	return &storage{
		users:   postgres.NewUserRepository(pool),
		refresh: postgres.NewRefreshTokenRepository(pool),
		resets:  postgres.NewPasswordResetRepository(pool),
		revoked: postgres.NewRevokedTokenRepository(pool),
		tx:      postgres.NewTransactor(pool),
		ready: func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		},
		close: pool.Close,
	}, nil
}

// closingNotifier is a notifier holding resources that must be released.
type closingNotifier interface {
	auth.Notifier
	Close() error
}

// newNotifier builds the delivery backend selected by cfg.Notifier.
func newNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierLog:
		return notify.NewLogNotifier(cfg.FrontendURL, logger), nil
	case config.NotifierSMTP:
		return notify.NewMailer(notify.MailerConfig{
			Addr:        cfg.SMTPAddr,
			From:        cfg.SMTPFrom,
			User:        cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			FrontendURL: cfg.FrontendURL,
			ResetTTL:    cfg.ResetTTL,
			Timeout:     cfg.SMTPTimeout,
			MaxRetries:  smtpMaxRetries,
		}, logger), nil
	case config.NotifierKafka:
		w := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		return notify.NewKafkaNotifier(w, cfg.FrontendURL, logger), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("notifier", cfg.Notifier).Errorf("unknown notifier %q", cfg.Notifier)
	}
}

// components is the wired auth core.
type components struct {
	storage *storage
	service *auth.Service
	sweeper *auth.Sweeper
	closers []func() error
}

// buildComponents wires storage, notifier, token stores and the service.
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*components, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &components{storage: st}
	c.closers = append(c.closers, func() error { st.close(); return nil })

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if cn, ok := notifier.(closingNotifier); ok {
		c.closers = append(c.closers, cn.Close)
	}

	clock := auth.SystemClock{}
	refresh, err := auth.NewRefreshTokens(st.refresh, cfg.RefreshTTL, clock)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	resets, err := auth.NewResetTokens(st.resets, cfg.ResetTTL, clock)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	ledger, err := auth.NewRevocationLedger(st.revoked, clock)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	codec, err := auth.NewTokenCodec([]byte(cfg.TokenSecret), cfg.TokenIssuer, cfg.AccessTTL, clock)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.service, err = auth.NewService(auth.ServiceConfig{
		Users:      st.users,
		Refresh:    refresh,
		Resets:     resets,
		Ledger:     ledger,
		Codec:      codec,
		Hasher:     auth.NewArgon2idHasher(cfg.Argon2Params()),
		Notifier:   notify.Instrument(notifier, cfg.Notifier, metrics),
		Transactor: st.tx,
		Clock:      clock,
		Logger:     logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.sweeper = auth.NewSweeper(st.refresh, st.resets, st.revoked, clock, cfg.SweepInterval, logger)
	c.sweeper.OnSweep(func(res auth.SweepResult, err error) {
		metrics.RecordSweep(res.RefreshTokens, res.ResetTokens, res.RevokedTokens, err)
	})
	return c, nil
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
