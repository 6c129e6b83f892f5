// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is an account holder. Email and FullName are each unique.
type User struct {
	ID           ulid.ULID
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a validated User stamped with now.
func NewUser(email, fullName, passwordHash string, now time.Time) (*User, error) {
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if fullName == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("full name cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Identity is the public view of an authenticated user. Identities built by
// Service.Authenticate carry only Email; ID and FullName are set when the
// user row was loaded, and are left out of JSON when unset.
type Identity struct {
	ID       ulid.ULID `json:"id,omitzero"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName,omitempty"`
}

// Identity returns the public view of u.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail or ErrDuplicateName
	// when a unique key is already taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByFullName retrieves a user by exact display name.
	// Returns ErrNotFound if the name is free.
	GetByFullName(ctx context.Context, fullName string) (*User, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, updatedAt time.Time) error
}
