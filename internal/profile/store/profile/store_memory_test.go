package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) insert(state models.RegistrationState, offset time.Duration) *models.Profile {
	p := &models.Profile{
		ID:                id.NewUserID(),
		Email:             "ops@example.org",
		FullName:          "Ops",
		OrganizationName:  "Helpers",
		Role:              models.RoleNGO,
		RegistrationState: state,
		CreatedAt:         s.base.Add(offset),
		UpdatedAt:         s.base.Add(offset),
	}
	s.Require().NoError(s.store.Insert(s.ctx, p))
	return p
}

func (s *InMemoryStoreSuite) TestInsertRejectsSecondProfileForUser() {
	p := s.insert(models.RegistrationComplete, 0)

	err := s.store.Insert(s.ctx, p)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryStoreSuite) TestFindReturnsCopies() {
	p := s.insert(models.RegistrationComplete, 0)

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	found.FullName = "changed"

	again, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Ops", again.FullName)
}

func (s *InMemoryStoreSuite) TestFindUnknown() {
	_, err := s.store.FindByID(s.ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestSetVerified() {
	p := s.insert(models.RegistrationComplete, 0)
	at := s.base.Add(time.Hour)

	s.Require().NoError(s.store.SetVerified(s.ctx, p.ID, true, at))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(found.IsVerified)
	s.Equal(at, found.UpdatedAt)

	s.ErrorIs(s.store.SetVerified(s.ctx, id.NewUserID(), true, at), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListIncompleteOldestFirst() {
	s.insert(models.RegistrationComplete, 0)
	second := s.insert(models.RegistrationIncomplete, 2*time.Minute)
	first := s.insert(models.RegistrationIncomplete, time.Minute)

	out, err := s.store.ListIncomplete(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(first.ID, out[0].ID)
	s.Equal(second.ID, out[1].ID)

	limited, err := s.store.ListIncomplete(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(limited, 1)

	s.Require().NoError(s.store.SetRegistrationState(s.ctx, first.ID, models.RegistrationComplete, s.base))
	out, err = s.store.ListIncomplete(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(second.ID, out[0].ID)
}
