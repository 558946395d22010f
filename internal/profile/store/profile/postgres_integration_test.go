//go:build integration

package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"findthem/internal/profile/models"
	"findthem/internal/profile/store/profile"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/testutil/containers"
)

type PostgresProfileStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *profile.PostgresStore
	ctx      context.Context
	base     time.Time
}

func TestPostgresProfileStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresProfileStoreSuite))
}

func (s *PostgresProfileStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = profile.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
	s.base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *PostgresProfileStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "accounts"))
}

func (s *PostgresProfileStoreSuite) newProfile(role models.Role, state models.RegistrationState, offset time.Duration) *models.Profile {
	userID := id.NewUserID()
	address := userID.String() + "@example.org"
	_, err := s.postgres.DB.ExecContext(s.ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, 'x', $3)`,
		userID.String(), address, s.base)
	s.Require().NoError(err)

	p := &models.Profile{
		ID:                userID,
		Email:             address,
		FullName:          "Amina Bello",
		OrganizationName:  "Lagos State Police",
		Role:              role,
		RegistrationState: state,
		CreatedAt:         s.base.Add(offset),
		UpdatedAt:         s.base.Add(offset),
	}
	if role == models.RolePolice {
		policeID := "LSP-0042"
		p.PoliceID = &policeID
	}
	return p
}

func (s *PostgresProfileStoreSuite) TestRoundTrip() {
	p := s.newProfile(models.RolePolice, models.RegistrationComplete, 0)
	s.Require().NoError(s.store.Insert(s.ctx, p))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Email, found.Email)
	s.Equal(models.RolePolice, found.Role)
	s.Require().NotNil(found.PoliceID)
	s.Equal("LSP-0042", *found.PoliceID)
	s.False(found.IsVerified)
	s.True(p.CreatedAt.Equal(found.CreatedAt))

	s.ErrorIs(s.store.Insert(s.ctx, p), sentinel.ErrAlreadyUsed)
}

func (s *PostgresProfileStoreSuite) TestSetVerifiedAndState() {
	p := s.newProfile(models.RoleNGO, models.RegistrationIncomplete, 0)
	s.Require().NoError(s.store.Insert(s.ctx, p))

	at := s.base.Add(time.Hour)
	s.Require().NoError(s.store.SetVerified(s.ctx, p.ID, true, at))
	s.Require().NoError(s.store.SetRegistrationState(s.ctx, p.ID, models.RegistrationComplete, at))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(found.IsVerified)
	s.Nil(found.PoliceID)
	s.Equal(models.RegistrationComplete, found.RegistrationState)

	s.ErrorIs(s.store.SetVerified(s.ctx, id.NewUserID(), true, at), sentinel.ErrNotFound)
}

func (s *PostgresProfileStoreSuite) TestListIncomplete() {
	complete := s.newProfile(models.RoleNGO, models.RegistrationComplete, 0)
	later := s.newProfile(models.RoleNGO, models.RegistrationIncomplete, 2*time.Minute)
	earlier := s.newProfile(models.RoleNGO, models.RegistrationIncomplete, time.Minute)
	for _, p := range []*models.Profile{complete, later, earlier} {
		s.Require().NoError(s.store.Insert(s.ctx, p))
	}

	out, err := s.store.ListIncomplete(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(earlier.ID, out[0].ID)
	s.Equal(later.ID, out[1].ID)
}
