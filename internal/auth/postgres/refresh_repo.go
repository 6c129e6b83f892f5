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

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	pool store.Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool store.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Replace deletes the user's refresh token and inserts token in one
// transaction. The user row is locked first so concurrent logins for the
// same user serialize.
func (r *RefreshTokenRepository) Replace(ctx context.Context, token *auth.RefreshToken) error {
	userID := token.UserID.String()
	return inTx(ctx, r.pool, func(q querier) error {
		if err := lockUser(ctx, q, userID); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return oops.Code("REFRESH_TOKEN_REPLACE_FAILED").
				With("operation", "delete previous refresh token").
				With("user_id", userID).
				Wrap(err)
		}
		_, err := q.Exec(ctx, `
			INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, token.ID.String(), userID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.Revoked)
		if _, dup := uniqueViolation(err); dup {
			return oops.Code("REFRESH_TOKEN_REPLACE_FAILED").With("user_id", userID).Wrap(auth.ErrAlreadyExists)
		}
		if err != nil {
			return oops.Code("REFRESH_TOKEN_REPLACE_FAILED").
				With("operation", "insert refresh token").
				With("user_id", userID).
				Wrap(err)
		}
		return nil
	})
}

// GetByTokenHash retrieves a refresh token by its hash.
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr, userIDStr string
		t                auth.RefreshToken
	)
	err := row.Scan(&idStr, &userIDStr, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_QUERY_FAILED").With("operation", "get refresh token by hash").Wrap(err)
	}
	if t.ID, t.UserID, err = parseIDs(idStr, userIDStr); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_INVALID_ID").Wrap(err)
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// Revoke sets the revoked flag. An unknown hash is not an error.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("operation", "revoke refresh token").Wrap(err)
	}
	return nil
}

// Delete removes a refresh token by ID.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("REFRESH_TOKEN_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	return nil
}

// DeleteByUser removes the user's refresh tokens.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("REFRESH_TOKEN_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens that expired before now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// lockUser takes a row lock on the user, failing with auth.ErrNotFound if
// the user does not exist.
func lockUser(ctx context.Context, q querier, userID string) error {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("USER_NOT_FOUND").With("user_id", userID).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("USER_LOCK_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

func parseIDs(idStr, userIDStr string) (id, userID ulid.ULID, err error) {
	if id, err = ulid.Parse(idStr); err != nil {
		return id, userID, oops.With("id", idStr).Wrap(err)
	}
	if userID, err = ulid.Parse(userIDStr); err != nil {
		return id, userID, oops.With("user_id", userIDStr).Wrap(err)
	}
	return id, userID, nil
}

var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
