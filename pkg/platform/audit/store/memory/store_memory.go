package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "microbonds/pkg/platform/audit"
)

type record struct {
	event     audit.Event
	published bool
}

// InMemoryStore keeps events in insertion order. It doubles as an outbox so
// the relay can run without Postgres.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.records = append(s.records, &record{event: event})
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, r := range s.records {
		if r.event.Subject == subject {
			out = append(out, r.event)
		}
	}
	return out, nil
}

// ListRecent returns the last limit events, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	out := make([]audit.Event, 0, len(s.records)-start)
	for _, r := range s.records[start:] {
		out = append(out, r.event)
	}
	return out, nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, r := range s.records {
		if len(out) >= limit {
			break
		}
		if r.published {
			continue
		}
		payload, err := json.Marshal(r.event)
		if err != nil {
			return nil, fmt.Errorf("marshal audit payload: %w", err)
		}
		out = append(out, audit.OutboxEntry{
			ID:            r.event.ID,
			AggregateType: r.event.Service,
			AggregateID:   r.event.Subject,
			EventType:     r.event.Action,
			Payload:       payload,
			CreatedAt:     r.event.Timestamp,
		})
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	for _, r := range s.records {
		if _, ok := done[r.event.ID]; ok {
			r.published = true
		}
	}
	return nil
}
