// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trackmint/trackmint/internal/store"
)

// querier is satisfied by both the pool and pgx.Tx, so repository methods
// run unchanged inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn returns the transaction stored in ctx, or pool if there is none.
func conn(ctx context.Context, pool store.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// inTx runs fn on the transaction in ctx, starting one if needed.
func inTx(ctx context.Context, pool store.Pool, fn func(q querier) error) error {
	return NewTransactor(pool).InTransaction(ctx, func(ctx context.Context) error {
		return fn(conn(ctx, pool))
	})
}

// uniqueViolation returns the constraint name if err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
