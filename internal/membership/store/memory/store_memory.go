// Package memory keeps memberships in process.
package memory

import (
	"context"
	"sync"

	"microbonds/pkg/domain"
)

type members struct {
	order []string
	set   map[string]struct{}
}

// InMemoryStore implements the membership store in memory.
type InMemoryStore struct {
	mu             sync.RWMutex
	municipalities map[string]*members
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{municipalities: make(map[string]*members)}
}

func (s *InMemoryStore) AddUser(_ context.Context, municipalityID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.municipalities[municipalityID]
	if !ok {
		m = &members{set: make(map[string]struct{})}
		s.municipalities[municipalityID] = m
	}
	if _, dup := m.set[userID]; dup {
		return false, nil
	}
	m.set[userID] = struct{}{}
	m.order = append(m.order, userID)
	return true, nil
}

func (s *InMemoryStore) ListUsers(_ context.Context, municipalityID string, page domain.Page) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.municipalities[municipalityID]
	if !ok {
		return []string{}, nil
	}
	return domain.Paginate(m.order, page), nil
}

func (s *InMemoryStore) IsMember(_ context.Context, municipalityID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.municipalities[municipalityID]
	if !ok {
		return false, nil
	}
	_, ok = m.set[userID]
	return ok, nil
}
