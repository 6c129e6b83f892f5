// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/store"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool store.Pool
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool store.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Replace deletes the user's reset token and inserts token in one
// transaction.
func (r *PasswordResetRepository) Replace(ctx context.Context, token *auth.PasswordResetToken) error {
	userID := token.UserID.String()
	return inTx(ctx, r.pool, func(q querier) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID); err != nil {
			return oops.Code("RESET_REPLACE_FAILED").
				With("operation", "delete previous reset token").
				With("user_id", userID).
				Wrap(err)
		}
		_, err := q.Exec(ctx, `
			INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at, used)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, token.ID.String(), userID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.Used)
		if _, dup := uniqueViolation(err); dup {
			return oops.Code("RESET_REPLACE_FAILED").With("user_id", userID).Wrap(auth.ErrAlreadyExists)
		}
		if err != nil {
			return oops.Code("RESET_REPLACE_FAILED").
				With("operation", "insert reset token").
				With("user_id", userID).
				Wrap(err)
		}
		return nil
	})
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, used
		FROM password_reset_tokens
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr, userIDStr string
		t                auth.PasswordResetToken
	)
	err := row.Scan(&idStr, &userIDStr, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_QUERY_FAILED").With("operation", "get reset token by hash").Wrap(err)
	}
	if t.ID, t.UserID, err = parseIDs(idStr, userIDStr); err != nil {
		return nil, oops.Code("RESET_INVALID_ID").Wrap(err)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// MarkUsed flags an unused token as used. Fails with auth.ErrNotFound if
// the token is missing or another caller consumed it first.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE WHERE id = $1 AND used = FALSE
	`, id.String())
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a reset token by ID.
func (r *PasswordResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes the user's reset tokens.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes reset tokens that expired before now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
