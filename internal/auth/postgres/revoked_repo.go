// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/store"
)

// RevokedTokenRepository implements auth.RevokedTokenRepository using PostgreSQL.
type RevokedTokenRepository struct {
	pool store.Pool
}

// NewRevokedTokenRepository creates a new RevokedTokenRepository.
func NewRevokedTokenRepository(pool store.Pool) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: pool}
}

// Insert appends a blocklist entry.
func (r *RevokedTokenRepository) Insert(ctx context.Context, token *auth.RevokedToken) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO revoked_tokens (token_hash, revoked_at, expires_at)
		VALUES ($1, $2, $3)
	`, token.TokenHash, token.RevokedAt, token.ExpiresAt)
	if _, dup := uniqueViolation(err); dup {
		return oops.Code("REVOKED_TOKEN_DUPLICATE").Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("REVOKED_TOKEN_INSERT_FAILED").With("operation", "insert revoked token").Wrap(err)
	}
	return nil
}

// Exists reports whether the hash is blocklisted.
func (r *RevokedTokenRepository) Exists(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`, tokenHash).Scan(&exists)
	if err != nil {
		return false, oops.Code("REVOKED_TOKEN_QUERY_FAILED").With("operation", "check revoked token").Wrap(err)
	}
	return exists, nil
}

// DeleteExpired removes entries whose access token expired before now.
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("REVOKED_TOKEN_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.RevokedTokenRepository = (*RevokedTokenRepository)(nil)
