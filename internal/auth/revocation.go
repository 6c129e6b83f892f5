// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// RevokedToken is a blocklist entry for an access token rejected before its
// natural expiry.
type RevokedToken struct {
	TokenHash string
	RevokedAt time.Time
	// ExpiresAt is the access token's own expiry; the row may be pruned after it.
	ExpiresAt time.Time
}

// RevokedTokenRepository manages the access token blocklist.
type RevokedTokenRepository interface {
	// Insert adds an entry. Returns ErrAlreadyExists if the hash is present.
	Insert(ctx context.Context, token *RevokedToken) error

	// Exists reports whether the hash is blocklisted.
	Exists(ctx context.Context, tokenHash string) (bool, error)

	// DeleteExpired removes entries whose token expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RevocationLedger is the append-only record of revoked access tokens.
type RevocationLedger struct {
	repo  RevokedTokenRepository
	clock Clock
}

// NewRevocationLedger creates a ledger.
func NewRevocationLedger(repo RevokedTokenRepository, clock Clock) (*RevocationLedger, error) {
	if repo == nil {
		return nil, oops.Code("LEDGER_INVALID_CONFIG").Errorf("revoked token repository is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RevocationLedger{repo: repo, clock: clock}, nil
}

// Revoke records the token. Revoking an already revoked token succeeds.
func (l *RevocationLedger) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	err := l.repo.Insert(ctx, &RevokedToken{
		TokenHash: HashToken(token),
		RevokedAt: l.clock.Now(),
		ExpiresAt: expiresAt,
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return oops.Code("LEDGER_REVOKE_FAILED").Wrap(err)
	}
	return nil
}

// IsRevoked reports ledger membership. The entry's age is not considered.
func (l *RevocationLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := l.repo.Exists(ctx, HashToken(token))
	if err != nil {
		return false, oops.Code("LEDGER_LOOKUP_FAILED").Wrap(err)
	}
	return revoked, nil
}
