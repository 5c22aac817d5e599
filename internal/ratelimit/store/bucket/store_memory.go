// Package bucket counts requests per key over a sliding window.
package bucket

import (
	"context"
	"sync"
	"time"

	"microbonds/internal/ratelimit/models"
)

// sweepEvery bounds how often Allow scans for keys whose window has emptied.
const sweepEvery = time.Minute

// InMemoryBucketStore keeps one sliding window of timestamps per key. It is
// per process; RedisBucketStore shares windows across replicas. Keys that
// stop sending are dropped by a sweep once their newest request is older
// than the longest window in use.
type InMemoryBucketStore struct {
	mu        sync.Mutex
	buckets   map[string][]time.Time
	now       func() time.Time
	maxWindow time.Duration
	lastSweep time.Time
}

func New() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: make(map[string][]time.Time), now: time.Now}
}

// Allow records a request for key when the window has room.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit models.Limit) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if limit.Window > s.maxWindow {
		s.maxWindow = limit.Window
	}
	s.sweep(now)

	window := prune(s.buckets[key], now.Add(-limit.Window))
	if len(window) >= limit.Requests {
		if len(window) == 0 {
			delete(s.buckets, key)
		} else {
			s.buckets[key] = window
		}
		resetAt := now.Add(limit.Window)
		if len(window) > 0 {
			resetAt = window[0].Add(limit.Window)
		}
		return &models.Result{Allowed: false, Limit: limit.Requests, ResetAt: resetAt}, nil
	}

	window = append(window, now)
	s.buckets[key] = window
	return &models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(window),
		ResetAt:   window[0].Add(limit.Window),
	}, nil
}

// Reset forgets key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// sweep deletes keys with no request inside the longest window. Callers hold
// the lock.
func (s *InMemoryBucketStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepEvery {
		return
	}
	s.lastSweep = now
	cutoff := now.Add(-s.maxWindow)
	for key, ts := range s.buckets {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(s.buckets, key)
		}
	}
}

// prune drops timestamps at or before cutoff; timestamps are ascending.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i].After(cutoff) {
			break
		}
	}
	if i == 0 {
		return ts
	}
	// Copy so the dropped prefix does not pin the old backing array.
	return append([]time.Time(nil), ts[i:]...)
}
