// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/store"
)

// Transactor implements auth.Transactor. The active pgx.Tx travels in the
// context so repository calls made with that context join it.
type Transactor struct {
	pool store.Pool
}

// NewTransactor creates a Transactor backed by pool.
func NewTransactor(pool store.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction calls fn inside a transaction, committing if fn returns nil
// and rolling back otherwise. fn's error is returned as is. A call made
// while a transaction is already active joins it.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // fn's error takes precedence
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
