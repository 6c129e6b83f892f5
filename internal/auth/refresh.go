// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultRefreshTokenTTL is the refresh token lifetime when none is configured.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// RefreshToken is a long-lived credential for minting new access tokens.
// A user owns at most one row.
type RefreshToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// IsExpiredAt returns true if the token is expired at t.
func (r *RefreshToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Replace deletes every token owned by token.UserID and stores token.
	// The two steps are atomic with respect to other writers for that user.
	Replace(ctx context.Context, token *RefreshToken) error

	// GetByTokenHash retrieves a token by its hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke sets the revoked flag. An absent token is not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// Delete removes a token by ID. An absent token is not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokens issues and resolves refresh tokens. Expiry and revocation are
// judged by the caller so that the two outcomes stay distinguishable.
type RefreshTokens struct {
	repo  RefreshTokenRepository
	ttl   time.Duration
	clock Clock
}

// NewRefreshTokens creates a refresh token store.
func NewRefreshTokens(repo RefreshTokenRepository, ttl time.Duration, clock Clock) (*RefreshTokens, error) {
	if repo == nil {
		return nil, oops.Code("REFRESH_TOKENS_INVALID_CONFIG").Errorf("refresh token repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RefreshTokens{repo: repo, ttl: ttl, clock: clock}, nil
}

// Issue replaces the user's refresh token with a new one and returns its
// plaintext value.
func (s *RefreshTokens) Issue(ctx context.Context, userID ulid.ULID) (string, *RefreshToken, error) {
	token, hash, err := GenerateOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	now := s.clock.Now()
	row := &RefreshToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Replace(ctx, row); err != nil {
		return "", nil, oops.Code("REFRESH_ISSUE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return token, row, nil
}

// Lookup resolves a plaintext token. Fails with KindInvalidRefreshToken if
// no such token is stored.
func (s *RefreshTokens) Lookup(ctx context.Context, token string) (*RefreshToken, error) {
	if token == "" {
		return nil, NewError(KindInvalidRefreshToken)
	}
	row, err := s.repo.GetByTokenHash(ctx, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, NewError(KindInvalidRefreshToken)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_LOOKUP_FAILED").Wrap(err)
	}
	return row, nil
}

// Revoke marks the token revoked if it is stored.
func (s *RefreshTokens) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Revoke(ctx, HashToken(token)); err != nil {
		return oops.Code("REFRESH_REVOKE_FAILED").Wrap(err)
	}
	return nil
}

// Delete removes a token row.
func (s *RefreshTokens) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return oops.Code("REFRESH_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes all of a user's tokens.
func (s *RefreshTokens) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("REFRESH_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}
