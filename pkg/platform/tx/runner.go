package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "microbonds/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// Runner runs a unit of work inside a Postgres transaction. When a lock key
// is set, the transaction first takes a transaction-scoped advisory lock so
// every unit of work sharing that key runs one at a time across processes.
type Runner[S any] struct {
	db      *sql.DB
	store   S
	lockKey int64
	timeout time.Duration
}

// NewRunner binds store to db. A zero lockKey skips the advisory lock.
func NewRunner[S any](db *sql.DB, store S, lockKey int64) *Runner[S] {
	return &Runner[S]{db: db, store: store, lockKey: lockKey, timeout: defaultTxTimeout}
}

// RunInTx begins a transaction, exposes it to fn through ctx and commits when
// fn returns nil.
func (r *Runner[S]) RunInTx(ctx context.Context, fn func(ctx context.Context, store S) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.lockKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, r.lockKey); err != nil {
			if ctx.Err() != nil {
				return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: lock wait exceeded")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire advisory lock")
		}
	}

	if err := fn(WithTx(ctx, tx), r.store); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
