package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"findthem/internal/cases/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/predicate"
	"findthem/pkg/platform/sentinel"
)

// InMemoryStore keeps cases in a map guarded by a RWMutex. Case numbers are
// unique like the PostgreSQL constraint.
type InMemoryStore struct {
	mu          sync.RWMutex
	cases       map[id.CaseID]*models.Case
	caseNumbers map[string]id.CaseID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:       make(map[id.CaseID]*models.Case),
		caseNumbers: make(map[string]id.CaseID),
	}
}

// Insert returns sentinel.ErrAlreadyUsed when the case number is taken.
func (s *InMemoryStore) Insert(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.caseNumbers[c.CaseNumber]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.cases[c.ID]; exists {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = c.Clone()
	s.caseNumbers[c.CaseNumber] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, caseID id.CaseID) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Update replaces the mutable fields of the stored case when it also matches
// where. Case number, owner and creation time are kept from the stored row.
func (s *InMemoryStore) Update(_ context.Context, c *models.Case, where predicate.Predicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.cases[c.ID]
	if !ok || !where.Match(stored) {
		return sentinel.ErrNotFound
	}
	next := c.Clone()
	next.CaseNumber = stored.CaseNumber
	next.ReportedBy = stored.ReportedBy
	next.CreatedAt = stored.CreatedAt
	s.cases[c.ID] = next
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, where predicate.Predicate, after *cursor.Cursor, limit int) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*models.Case, 0)
	for _, c := range s.cases {
		if !where.Match(c) {
			continue
		}
		if after != nil && !after.Precedes(c.CreatedAt, uuid.UUID(c.ID)) {
			continue
		}
		matched = append(matched, c)
	}
	slices.SortFunc(matched, func(a, b *models.Case) int {
		switch {
		case cursor.Less(a.CreatedAt, uuid.UUID(a.ID), b.CreatedAt, uuid.UUID(b.ID)):
			return -1
		case cursor.Less(b.CreatedAt, uuid.UUID(b.ID), a.CreatedAt, uuid.UUID(a.ID)):
			return 1
		}
		return 0
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*models.Case, len(matched))
	for i, c := range matched {
		out[i] = c.Clone()
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, where predicate.Predicate) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.cases {
		if where.Match(c) {
			n++
		}
	}
	return n, nil
}

// ListIDs returns the ids of every matching case, in no particular order.
func (s *InMemoryStore) ListIDs(_ context.Context, where predicate.Predicate) ([]id.CaseID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.CaseID, 0)
	for _, c := range s.cases {
		if where.Match(c) {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

// Exists reports whether a case with caseID exists in any status.
func (s *InMemoryStore) Exists(_ context.Context, caseID id.CaseID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cases[caseID]
	return ok, nil
}
