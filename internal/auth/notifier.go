// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import "context"

// Notifier delivers password reset tokens to their owners.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Transactor runs fn inside a storage transaction. Repository calls made
// with the context passed to fn join the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
