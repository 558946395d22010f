package verification

import (
	"context"
	"slices"
	"sync"
	"time"

	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
)

// InMemoryStore indexes requests by id and by profile.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.VerificationRequestID]*models.VerificationRequest
	byUser map[id.UserID]id.VerificationRequestID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.VerificationRequestID]*models.VerificationRequest),
		byUser: make(map[id.UserID]id.VerificationRequestID),
	}
}

// Insert returns sentinel.ErrAlreadyUsed when the profile already has a request.
func (s *InMemoryStore) Insert(_ context.Context, r *models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[r.UserID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.byID[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[r.ID] = r.Clone()
	s.byUser[r.UserID] = r.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) FindByUserID(_ context.Context, userID id.UserID) (*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requestID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[requestID].Clone(), nil
}

// ListByStatus returns up to limit requests in status, oldest first.
func (s *InMemoryStore) ListByStatus(_ context.Context, status models.VerificationStatus, limit int) ([]*models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VerificationRequest, 0)
	for _, r := range s.byID {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.VerificationRequest) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Review moves a pending request to status. It returns sentinel.ErrNotFound
// when the request is missing and sentinel.ErrInvalidState when it was
// already reviewed.
func (s *InMemoryStore) Review(_ context.Context, requestID id.VerificationRequestID, status models.VerificationStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != models.VerificationPending {
		return sentinel.ErrInvalidState
	}
	r.Status = status
	reviewed := at
	r.ReviewedAt = &reviewed
	return nil
}
