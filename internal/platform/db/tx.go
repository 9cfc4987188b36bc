package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOption customises a transaction.
type TxOption func(*pgx.TxOptions)

// WithIsolation overrides the isolation level.
func WithIsolation(level pgx.TxIsoLevel) TxOption {
	return func(o *pgx.TxOptions) { o.IsoLevel = level }
}

// ReadOnly marks the transaction read only.
func ReadOnly() TxOption {
	return func(o *pgx.TxOptions) { o.AccessMode = pgx.ReadOnly }
}

// WithTx executes fn within a transaction. The default isolation is
// ReadCommitted; stock mutations serialise on explicit row locks instead.
// The transaction rolls back when fn returns an error or panics.
func WithTx(ctx context.Context, pool Beginner, fn func(pgx.Tx) error, opts ...TxOption) error {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	for _, opt := range opts {
		opt(&txOpts)
	}

	tx, err := pool.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
