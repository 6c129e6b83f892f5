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

// Unique constraints on users, as named by the schema migration.
const (
	usersEmailKey    = "users_email_key"
	usersFullNameKey = "users_full_name_key"
)

const selectUser = `
	SELECT id, email, full_name, password_hash, created_at, updated_at
	FROM users
`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, email, full_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID.String(), user.Email, user.FullName, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err == nil {
		return nil
	}

	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case usersEmailKey:
			return oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
		case usersFullNameKey:
			return oops.Code("USER_CREATE_FAILED").With("full_name", user.FullName).Wrap(auth.ErrDuplicateName)
		}
		return oops.Code("USER_CREATE_FAILED").With("constraint", constraint).Wrap(auth.ErrAlreadyExists)
	}
	return oops.Code("USER_CREATE_FAILED").
		With("operation", "insert user").
		With("user_id", user.ID.String()).
		Wrap(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "id", selectUser+`WHERE id = $1`, id.String())
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "email", selectUser+`WHERE email = $1`, email)
}

// GetByFullName retrieves a user by exact display name.
func (r *UserRepository) GetByFullName(ctx context.Context, fullName string) (*auth.User, error) {
	return r.getOne(ctx, "full_name", selectUser+`WHERE full_name = $1`, fullName)
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, updatedAt time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, id.String(), passwordHash, updatedAt)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update password").
			With("user_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("user_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, field, query string, arg any) (*auth.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(field, arg).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_QUERY_FAILED").With("operation", "get user by "+field).Wrap(err)
	}
	return user, nil
}

// scanUser scans one users row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
	)
	if err := row.Scan(&idStr, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with query context
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").With("id", idStr).Wrap(err)
	}
	u.ID = id
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
