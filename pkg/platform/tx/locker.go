package tx

import (
	"context"
	"sync"
	"time"

	dErrors "microbonds/pkg/domain-errors"
)

// Locker is the in-process counterpart of Runner: a single lock around the
// store, so units of work run one at a time the way a ledger contract
// executes one call at a time. There is no rollback.
type Locker[S any] struct {
	mu      sync.Mutex
	store   S
	timeout time.Duration
}

func NewLocker[S any](store S) *Locker[S] {
	return &Locker[S]{store: store, timeout: defaultTxTimeout}
}

func (l *Locker[S]) RunInTx(ctx context.Context, fn func(ctx context.Context, store S) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, l.store)
}
