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

// DefaultResetTokenTTL is the password reset window.
const DefaultResetTokenTTL = 15 * time.Minute

// PasswordResetToken is a single-use credential for setting a new password.
// It is live until used or expired; a used row is kept until swept.
type PasswordResetToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsExpiredAt returns true if the token is expired at t.
func (r *PasswordResetToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Replace deletes every reset token owned by token.UserID and stores
	// token, atomically with respect to other writers for that user.
	Replace(ctx context.Context, token *PasswordResetToken) error

	// GetByTokenHash retrieves a reset token by its hash.
	// Returns ErrNotFound if absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)

	// MarkUsed sets the used flag on an unused token. Returns ErrNotFound if
	// no unused row with the ID exists.
	MarkUsed(ctx context.Context, id ulid.ULID) error

	// Delete removes a reset token by ID. An absent token is not an error.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all reset tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes reset tokens that expired before now, used or not.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokens issues and resolves password reset tokens.
type ResetTokens struct {
	repo  PasswordResetRepository
	ttl   time.Duration
	clock Clock
}

// NewResetTokens creates a reset token store.
func NewResetTokens(repo PasswordResetRepository, ttl time.Duration, clock Clock) (*ResetTokens, error) {
	if repo == nil {
		return nil, oops.Code("RESET_TOKENS_INVALID_CONFIG").Errorf("password reset repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ResetTokens{repo: repo, ttl: ttl, clock: clock}, nil
}

// TTL returns the reset window.
func (s *ResetTokens) TTL() time.Duration { return s.ttl }

// Issue replaces the user's reset token with a new one and returns its
// plaintext value.
func (s *ResetTokens) Issue(ctx context.Context, userID ulid.ULID) (string, *PasswordResetToken, error) {
	token, hash, err := GenerateOpaqueToken()
	if err != nil {
		return "", nil, err
	}
	now := s.clock.Now()
	row := &PasswordResetToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Replace(ctx, row); err != nil {
		return "", nil, oops.Code("RESET_ISSUE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return token, row, nil
}

// Lookup resolves a plaintext token. Fails with KindInvalidToken if no such
// token is stored.
func (s *ResetTokens) Lookup(ctx context.Context, token string) (*PasswordResetToken, error) {
	if token == "" {
		return nil, NewError(KindInvalidToken)
	}
	row, err := s.repo.GetByTokenHash(ctx, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, NewError(KindInvalidToken)
	}
	if err != nil {
		return nil, oops.Code("RESET_LOOKUP_FAILED").Wrap(err)
	}
	return row, nil
}

// MarkUsed consumes the token. Fails with KindTokenAlreadyUsed if another
// caller consumed it first.
func (s *ResetTokens) MarkUsed(ctx context.Context, id ulid.ULID) error {
	err := s.repo.MarkUsed(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return NewError(KindTokenAlreadyUsed)
	}
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// Delete removes a reset token row.
func (s *ResetTokens) Delete(ctx context.Context, id ulid.ULID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes all of a user's reset tokens.
func (s *ResetTokens) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}
