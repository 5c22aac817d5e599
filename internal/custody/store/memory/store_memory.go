// Package memory keeps custody state in process.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/sentinel"
)

// holdings is one owner's custody entries in insertion order.
type holdings struct {
	keys []string
	set  map[string]struct{}
}

// InMemoryStore implements the custody store in memory.
type InMemoryStore struct {
	mu sync.RWMutex

	owners   map[string]*holdings
	links    map[string]domain.AccountID
	pending  map[domain.CorrelationID]*models.PendingTransfer
	inFlight map[models.OwnedToken]domain.CorrelationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		owners:   make(map[string]*holdings),
		links:    make(map[string]domain.AccountID),
		pending:  make(map[domain.CorrelationID]*models.PendingTransfer),
		inFlight: make(map[models.OwnedToken]domain.CorrelationID),
	}
}

func (s *InMemoryStore) AddToken(_ context.Context, token models.OwnedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.owners[token.OwnerID]
	if !ok {
		h = &holdings{set: make(map[string]struct{})}
		s.owners[token.OwnerID] = h
	}
	key := token.Key()
	if _, dup := h.set[key]; dup {
		return fmt.Errorf("token %s for %s: %w", key, token.OwnerID, sentinel.ErrAlreadyUsed)
	}
	h.set[key] = struct{}{}
	h.keys = append(h.keys, key)
	return nil
}

func (s *InMemoryStore) HasToken(_ context.Context, token models.OwnedToken) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.owners[token.OwnerID]
	if !ok {
		return false, nil
	}
	_, ok = h.set[token.Key()]
	return ok, nil
}

func (s *InMemoryStore) RemoveToken(_ context.Context, token models.OwnedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := token.Key()
	h, ok := s.owners[token.OwnerID]
	if !ok {
		return fmt.Errorf("token %s for %s: %w", key, token.OwnerID, sentinel.ErrNotFound)
	}
	if _, ok := h.set[key]; !ok {
		return fmt.Errorf("token %s for %s: %w", key, token.OwnerID, sentinel.ErrNotFound)
	}
	delete(h.set, key)
	h.keys = slices.DeleteFunc(h.keys, func(k string) bool { return k == key })
	return nil
}

func (s *InMemoryStore) ListTokens(_ context.Context, ownerID string, page domain.Page) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.owners[ownerID]
	if !ok {
		return []string{}, nil
	}
	return domain.Paginate(h.keys, page), nil
}

func (s *InMemoryStore) FindLink(_ context.Context, userID string) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.links[userID]
	if !ok {
		return "", fmt.Errorf("link for %s: %w", userID, sentinel.ErrNotFound)
	}
	return account, nil
}

func (s *InMemoryStore) SaveLink(_ context.Context, userID string, accountID domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[userID] = accountID
	return nil
}

func (s *InMemoryStore) SavePending(_ context.Context, pending *models.PendingTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[pending.CorrelationID]; ok {
		return fmt.Errorf("transfer %s: %w", pending.CorrelationID, sentinel.ErrAlreadyUsed)
	}
	if _, busy := s.inFlight[pending.Token]; busy {
		return fmt.Errorf("transfer of %s: %w", pending.Token.Key(), sentinel.ErrAlreadyUsed)
	}
	cp := *pending
	s.pending[pending.CorrelationID] = &cp
	s.inFlight[pending.Token] = pending.CorrelationID
	return nil
}

func (s *InMemoryStore) FindPending(_ context.Context, id domain.CorrelationID) (*models.PendingTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *pending
	return &cp, nil
}

func (s *InMemoryStore) ResolvePending(_ context.Context, id domain.CorrelationID, status models.TransferStatus, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pending[id]
	if !ok {
		return fmt.Errorf("transfer %s: %w", id, sentinel.ErrNotFound)
	}
	if pending.Status.IsResolved() {
		return fmt.Errorf("transfer %s is %s: %w", id, pending.Status, sentinel.ErrInvalidState)
	}
	pending.Status = status
	pending.Reason = reason
	pending.ResolvedAt = &at
	delete(s.inFlight, pending.Token)
	return nil
}
