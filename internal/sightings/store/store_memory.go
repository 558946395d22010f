package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/sentinel"
)

// InMemoryStore keeps sightings in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	sightings map[id.SightingID]*models.Sighting
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sightings: make(map[id.SightingID]*models.Sighting)}
}

func (s *InMemoryStore) Insert(_ context.Context, sighting *models.Sighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sightings[sighting.ID]; exists {
		return sentinel.ErrConflict
	}
	s.sightings[sighting.ID] = sighting.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sightingID id.SightingID) (*models.Sighting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sighting, ok := s.sightings[sightingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sighting.Clone(), nil
}

// UpdateStatus moves the sighting from one status to another. It returns
// sentinel.ErrNotFound when the sighting is missing or no longer in from.
func (s *InMemoryStore) UpdateStatus(_ context.Context, sightingID id.SightingID, from, to models.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sighting, ok := s.sightings[sightingID]
	if !ok || sighting.Status != from {
		return sentinel.ErrNotFound
	}
	sighting.Status = to
	sighting.UpdatedAt = at
	return nil
}

// ListByCase returns up to limit sightings of the case, newest first. A
// non-positive limit returns all of them.
func (s *InMemoryStore) ListByCase(ctx context.Context, caseID id.CaseID, limit int) ([]*models.Sighting, error) {
	return s.ListRecentByCases(ctx, []id.CaseID{caseID}, limit)
}

func (s *InMemoryStore) ListRecentByCases(_ context.Context, caseIDs []id.CaseID, limit int) ([]*models.Sighting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Sighting, 0)
	for _, sighting := range s.sightings {
		if slices.Contains(caseIDs, sighting.CaseID) {
			out = append(out, sighting.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Sighting) int {
		switch {
		case cursor.Less(a.CreatedAt, uuid.UUID(a.ID), b.CreatedAt, uuid.UUID(b.ID)):
			return -1
		case cursor.Less(b.CreatedAt, uuid.UUID(b.ID), a.CreatedAt, uuid.UUID(a.ID)):
			return 1
		}
		return 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) CountByCases(_ context.Context, caseIDs []id.CaseID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sighting := range s.sightings {
		if slices.Contains(caseIDs, sighting.CaseID) {
			n++
		}
	}
	return n, nil
}
