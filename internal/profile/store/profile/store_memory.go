package profile

import (
	"context"
	"slices"
	"sync"
	"time"

	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]*models.Profile)}
}

// Insert returns sentinel.ErrAlreadyUsed when the user already has a profile.
func (s *InMemoryStore) Insert(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.profiles[p.ID] = p.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) SetVerified(_ context.Context, userID id.UserID, verified bool, at time.Time) error {
	return s.mutate(userID, func(p *models.Profile) {
		p.IsVerified = verified
		p.UpdatedAt = at
	})
}

func (s *InMemoryStore) SetRegistrationState(_ context.Context, userID id.UserID, state models.RegistrationState, at time.Time) error {
	return s.mutate(userID, func(p *models.Profile) {
		p.RegistrationState = state
		p.UpdatedAt = at
	})
}

// ListIncomplete returns up to limit incomplete registrations, oldest first.
func (s *InMemoryStore) ListIncomplete(_ context.Context, limit int) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0)
	for _, p := range s.profiles {
		if p.RegistrationState == models.RegistrationIncomplete {
			out = append(out, p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Profile) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) mutate(userID id.UserID, fn func(*models.Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(p)
	return nil
}
