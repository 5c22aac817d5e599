package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "microbonds/pkg/platform/audit"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Producer delivers one outbox entry to the event stream.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Worker relays unpublished outbox entries to the event stream. Entries are
// marked published only after the producer acknowledged them, so delivery is
// at least once.
type Worker struct {
	outbox   audit.Outbox
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox audit.Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:   outbox,
		producer: producer,
		logger:   slog.Default(),
		interval: defaultInterval,
		batch:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were relayed.
// It stops at the first producer error so ordering per aggregate holds.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchUnpublished(ctx, w.batch)
	if err != nil {
		return 0, err
	}
	published := make([]uuid.UUID, 0, len(entries))
	var produceErr error
	for _, e := range entries {
		if produceErr = w.producer.Produce(ctx, e.AggregateType+":"+e.AggregateID, e.Payload); produceErr != nil {
			break
		}
		published = append(published, e.ID)
	}
	if err := w.outbox.MarkPublished(ctx, published, time.Now()); err != nil {
		return 0, err
	}
	return len(published), produceErr
}
