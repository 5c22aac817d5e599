package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/audit/store/memory"
)

type recordingProducer struct {
	keys   []string
	failAt int
}

func (p *recordingProducer) Produce(_ context.Context, key string, _ []byte) error {
	if p.failAt > 0 && len(p.keys)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) {
	t.Helper()
	for range n {
		require.NoError(t, store.Append(context.Background(), audit.Event{
			Service: "custody",
			Subject: "owner-1",
			Action:  string(audit.EventAddToken),
		}))
	}
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	producer := &recordingProducer{}
	w := NewWorker(store, producer)

	n, err := w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"custody:owner-1", "custody:owner-1", "custody:owner-1"}, producer.keys)

	n, err = w.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "published entries must not be relayed twice")
}

func TestRelayOnce_StopsAtFirstFailure(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	producer := &recordingProducer{failAt: 2}
	w := NewWorker(store, producer, WithBatchSize(10))

	n, err := w.RelayOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.FetchUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "failed and later entries stay in the outbox")
}
