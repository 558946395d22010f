package account

import (
	"context"
	"sync"

	"findthem/internal/identity/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
)

// InMemoryAccountStore indexes accounts by id and by normalized email.
type InMemoryAccountStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.Account
	byEmail map[string]id.UserID
}

func New() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		byID:    make(map[id.UserID]*models.Account),
		byEmail: make(map[string]id.UserID),
	}
}

// Create returns sentinel.ErrAlreadyUsed when the email is taken.
func (s *InMemoryAccountStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[account.Email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	stored := *account
	s.byID[account.ID] = &stored
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *InMemoryAccountStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *s.byID[userID]
	return &found, nil
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, userID id.UserID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	found := *account
	return &found, nil
}

// Delete removes the account; unknown ids are sentinel.ErrNotFound.
func (s *InMemoryAccountStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, account.Email)
	delete(s.byID, userID)
	return nil
}
