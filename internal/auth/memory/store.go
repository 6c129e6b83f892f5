// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package memory provides in-process implementations of the auth
// repositories for local development and tests. Data does not survive a
// restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
)

// Store holds every auth table behind a single mutex, which also makes each
// Replace atomic for its user.
type Store struct {
	mu      sync.Mutex
	users   map[ulid.ULID]auth.User
	refresh map[string]auth.RefreshToken       // by token hash
	resets  map[string]auth.PasswordResetToken // by token hash
	revoked map[string]auth.RevokedToken       // by token hash
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:   make(map[ulid.ULID]auth.User),
		refresh: make(map[string]auth.RefreshToken),
		resets:  make(map[string]auth.PasswordResetToken),
		revoked: make(map[string]auth.RevokedToken),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// RefreshTokens returns the refresh token repository view of the store.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// PasswordResets returns the reset token repository view of the store.
func (s *Store) PasswordResets() *PasswordResetRepository { return &PasswordResetRepository{s: s} }

// RevokedTokens returns the blocklist repository view of the store.
func (s *Store) RevokedTokens() *RevokedTokenRepository { return &RevokedTokenRepository{s: s} }

// InTransaction runs fn directly. Each repository call is atomic on its own;
// there is no rollback of earlier calls when fn fails.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// UserRepository implements auth.UserRepository.
type UserRepository struct{ s *Store }

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return oops.Code("USER_CREATE_FAILED").With("email", user.Email).Wrap(auth.ErrDuplicateEmail)
		}
		if u.FullName == user.FullName {
			return oops.Code("USER_CREATE_FAILED").With("full_name", user.FullName).Wrap(auth.ErrDuplicateName)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &u, nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.Email == email })
}

// GetByFullName retrieves a user by exact display name.
func (r *UserRepository) GetByFullName(_ context.Context, fullName string) (*auth.User, error) {
	return r.find(func(u auth.User) bool { return u.FullName == fullName })
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = updatedAt
	r.s.users[id] = u
	return nil
}

func (r *UserRepository) find(match func(auth.User) bool) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// RefreshTokenRepository implements auth.RefreshTokenRepository.
type RefreshTokenRepository struct{ s *Store }

// Replace deletes the user's tokens and stores token.
func (r *RefreshTokenRepository) Replace(_ context.Context, token *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[token.UserID]; !ok {
		return oops.Code("REFRESH_TOKEN_REPLACE_FAILED").With("user_id", token.UserID.String()).Wrap(auth.ErrNotFound)
	}
	for hash, t := range r.s.refresh {
		if t.UserID == token.UserID {
			delete(r.s.refresh, hash)
		}
	}
	if _, dup := r.s.refresh[token.TokenHash]; dup {
		return oops.Code("REFRESH_TOKEN_REPLACE_FAILED").Wrap(auth.ErrAlreadyExists)
	}
	r.s.refresh[token.TokenHash] = *token
	return nil
}

// GetByTokenHash retrieves a token by its hash.
func (r *RefreshTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.refresh[tokenHash]
	if !ok {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &t, nil
}

// Revoke sets the revoked flag if the token exists.
func (r *RefreshTokenRepository) Revoke(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.refresh[tokenHash]; ok {
		t.Revoked = true
		r.s.refresh[tokenHash] = t
	}
	return nil
}

// Delete removes a token by ID.
func (r *RefreshTokenRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for hash, t := range r.s.refresh {
		if t.ID == id {
			delete(r.s.refresh, hash)
		}
	}
	return nil
}

// DeleteByUser removes all tokens for a user.
func (r *RefreshTokenRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for hash, t := range r.s.refresh {
		if t.UserID == userID {
			delete(r.s.refresh, hash)
		}
	}
	return nil
}

// DeleteExpired removes tokens that expired before now.
func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, t := range r.s.refresh {
		if t.ExpiresAt.Before(now) {
			delete(r.s.refresh, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of refresh tokens stored for a user.
func (r *RefreshTokenRepository) Count(userID ulid.ULID) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, t := range r.s.refresh {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// PasswordResetRepository implements auth.PasswordResetRepository.
type PasswordResetRepository struct{ s *Store }

// Replace deletes the user's reset tokens and stores token.
func (r *PasswordResetRepository) Replace(_ context.Context, token *auth.PasswordResetToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[token.UserID]; !ok {
		return oops.Code("RESET_REPLACE_FAILED").With("user_id", token.UserID.String()).Wrap(auth.ErrNotFound)
	}
	for hash, t := range r.s.resets {
		if t.UserID == token.UserID {
			delete(r.s.resets, hash)
		}
	}
	if _, dup := r.s.resets[token.TokenHash]; dup {
		return oops.Code("RESET_REPLACE_FAILED").Wrap(auth.ErrAlreadyExists)
	}
	r.s.resets[token.TokenHash] = *token
	return nil
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *PasswordResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.resets[tokenHash]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &t, nil
}

// MarkUsed sets the used flag on an unused token.
func (r *PasswordResetRepository) MarkUsed(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for hash, t := range r.s.resets {
		if t.ID == id && !t.Used {
			t.Used = true
			r.s.resets[hash] = t
			return nil
		}
	}
	return oops.Code("RESET_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// Delete removes a reset token by ID.
func (r *PasswordResetRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for hash, t := range r.s.resets {
		if t.ID == id {
			delete(r.s.resets, hash)
		}
	}
	return nil
}

// DeleteByUser removes all reset tokens for a user.
func (r *PasswordResetRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for hash, t := range r.s.resets {
		if t.UserID == userID {
			delete(r.s.resets, hash)
		}
	}
	return nil
}

// DeleteExpired removes reset tokens that expired before now.
func (r *PasswordResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, t := range r.s.resets {
		if t.ExpiresAt.Before(now) {
			delete(r.s.resets, hash)
			n++
		}
	}
	return n, nil
}

// Count returns the number of reset tokens stored for a user.
func (r *PasswordResetRepository) Count(userID ulid.ULID) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, t := range r.s.resets {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// RevokedTokenRepository implements auth.RevokedTokenRepository.
type RevokedTokenRepository struct{ s *Store }

// Insert adds a blocklist entry.
func (r *RevokedTokenRepository) Insert(_ context.Context, token *auth.RevokedToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, dup := r.s.revoked[token.TokenHash]; dup {
		return oops.Code("REVOKED_TOKEN_DUPLICATE").Wrap(auth.ErrAlreadyExists)
	}
	r.s.revoked[token.TokenHash] = *token
	return nil
}

// Exists reports whether the hash is blocklisted.
func (r *RevokedTokenRepository) Exists(_ context.Context, tokenHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.revoked[tokenHash]
	return ok, nil
}

// DeleteExpired removes entries whose token expired before now.
func (r *RevokedTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, t := range r.s.revoked {
		if t.ExpiresAt.Before(now) {
			delete(r.s.revoked, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of blocklist entries.
func (r *RevokedTokenRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.revoked)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository          = (*UserRepository)(nil)
	_ auth.RefreshTokenRepository  = (*RefreshTokenRepository)(nil)
	_ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
	_ auth.RevokedTokenRepository  = (*RevokedTokenRepository)(nil)
	_ auth.Transactor              = (*Store)(nil)
)
