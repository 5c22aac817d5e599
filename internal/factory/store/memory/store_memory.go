// Package memory keeps factory state in process, preserving insertion order
// for every paged view.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/sentinel"
)

type project struct {
	id     string
	tokens []models.TokenReference
	seen   map[domain.AccountID]struct{}
}

type municipality struct {
	projects []string
	byID     map[string]*project
}

// InMemoryStore implements the factory store in memory.
type InMemoryStore struct {
	mu sync.RWMutex

	versions [][]byte

	municipalityOrder []string
	municipalities    map[string]*municipality

	pending  map[domain.CorrelationID]*models.PendingDeployment
	inFlight map[domain.AccountID]domain.CorrelationID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		municipalities: make(map[string]*municipality),
		pending:        make(map[domain.CorrelationID]*models.PendingDeployment),
		inFlight:       make(map[domain.AccountID]domain.CorrelationID),
	}
}

func (s *InMemoryStore) AppendVersion(_ context.Context, payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, append([]byte(nil), payload...))
	return uint64(len(s.versions) - 1), nil
}

func (s *InMemoryStore) FindVersion(_ context.Context, index uint64) (*models.TokenVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= uint64(len(s.versions)) {
		return nil, fmt.Errorf("token version %d: %w", index, sentinel.ErrNotFound)
	}
	return &models.TokenVersion{Index: index, Payload: append([]byte(nil), s.versions[index]...)}, nil
}

func (s *InMemoryStore) ListVersions(_ context.Context) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, len(s.versions))
	for i := range s.versions {
		out[i] = uint64(i)
	}
	return out, nil
}

func (s *InMemoryStore) AddMunicipality(_ context.Context, municipalityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.municipalities[municipalityID]; ok {
		return fmt.Errorf("municipality %s: %w", municipalityID, sentinel.ErrAlreadyUsed)
	}
	s.municipalities[municipalityID] = &municipality{byID: make(map[string]*project)}
	s.municipalityOrder = append(s.municipalityOrder, municipalityID)
	return nil
}

func (s *InMemoryStore) HasMunicipality(_ context.Context, municipalityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.municipalities[municipalityID]
	return ok, nil
}

func (s *InMemoryStore) ListMunicipalities(_ context.Context, page domain.Page) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Paginate(s.municipalityOrder, page), nil
}

func (s *InMemoryStore) AddProject(_ context.Context, municipalityID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.municipalities[municipalityID]
	if !ok {
		return fmt.Errorf("municipality %s: %w", municipalityID, sentinel.ErrNotFound)
	}
	if _, ok := m.byID[projectID]; ok {
		return fmt.Errorf("project %s/%s: %w", municipalityID, projectID, sentinel.ErrAlreadyUsed)
	}
	m.byID[projectID] = &project{id: projectID, seen: make(map[domain.AccountID]struct{})}
	m.projects = append(m.projects, projectID)
	return nil
}

func (s *InMemoryStore) HasProject(_ context.Context, municipalityID, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.project(municipalityID, projectID)
	return ok, nil
}

func (s *InMemoryStore) ListProjects(_ context.Context, municipalityID string, page domain.Page) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.municipalities[municipalityID]
	if !ok {
		return []string{}, nil
	}
	return domain.Paginate(m.projects, page), nil
}

func (s *InMemoryStore) AddToken(_ context.Context, municipalityID, projectID string, token models.TokenReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.project(municipalityID, projectID)
	if !ok {
		return fmt.Errorf("project %s/%s: %w", municipalityID, projectID, sentinel.ErrNotFound)
	}
	if _, dup := p.seen[token.AccountID]; dup {
		return fmt.Errorf("token %s: %w", token.AccountID, sentinel.ErrAlreadyUsed)
	}
	p.seen[token.AccountID] = struct{}{}
	p.tokens = append(p.tokens, token)
	return nil
}

func (s *InMemoryStore) ListTokens(_ context.Context, municipalityID, projectID string, page domain.Page) ([]models.TokenReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.project(municipalityID, projectID)
	if !ok {
		return []models.TokenReference{}, nil
	}
	return domain.Paginate(p.tokens, page), nil
}

// project must be called with mu held.
func (s *InMemoryStore) project(municipalityID, projectID string) (*project, bool) {
	m, ok := s.municipalities[municipalityID]
	if !ok {
		return nil, false
	}
	p, ok := m.byID[projectID]
	return p, ok
}

func (s *InMemoryStore) SavePending(_ context.Context, pending *models.PendingDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[pending.CorrelationID]; ok {
		return fmt.Errorf("deployment %s: %w", pending.CorrelationID, sentinel.ErrAlreadyUsed)
	}
	if _, busy := s.inFlight[pending.TokenAccountID]; busy {
		return fmt.Errorf("deployment to %s: %w", pending.TokenAccountID, sentinel.ErrAlreadyUsed)
	}
	cp := *pending
	s.pending[pending.CorrelationID] = &cp
	s.inFlight[pending.TokenAccountID] = pending.CorrelationID
	return nil
}

func (s *InMemoryStore) FindPending(_ context.Context, id domain.CorrelationID) (*models.PendingDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *pending
	return &cp, nil
}

func (s *InMemoryStore) ResolvePending(_ context.Context, id domain.CorrelationID, status models.DeploymentStatus, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pending[id]
	if !ok {
		return fmt.Errorf("deployment %s: %w", id, sentinel.ErrNotFound)
	}
	if pending.Status.IsResolved() {
		return fmt.Errorf("deployment %s is %s: %w", id, pending.Status, sentinel.ErrInvalidState)
	}
	pending.Status = status
	pending.Reason = reason
	pending.ResolvedAt = &at
	delete(s.inFlight, pending.TokenAccountID)
	return nil
}
