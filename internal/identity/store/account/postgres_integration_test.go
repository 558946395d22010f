//go:build integration

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"findthem/internal/identity/models"
	"findthem/internal/identity/store/account"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
	"findthem/pkg/testutil/containers"
)

type PostgresAccountStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *account.PostgresStore
}

func TestPostgresAccountStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresAccountStoreSuite))
}

func (s *PostgresAccountStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = account.NewPostgres(s.postgres.DB)
}

func (s *PostgresAccountStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "accounts"))
}

func (s *PostgresAccountStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	acc := &models.Account{
		ID:           id.UserID(uuid.New()),
		Email:        "police@example.org",
		PasswordHash: []byte("$2a$10$abcdefghijklmnopqrstuv"),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Create(ctx, acc))

	byEmail, err := s.store.FindByEmail(ctx, acc.Email)
	s.Require().NoError(err)
	s.Equal(acc.ID, byEmail.ID)
	s.Equal(acc.PasswordHash, byEmail.PasswordHash)

	byID, err := s.store.FindByID(ctx, acc.ID)
	s.Require().NoError(err)
	s.True(acc.CreatedAt.Equal(byID.CreatedAt))
}

func (s *PostgresAccountStoreSuite) TestDuplicateEmail() {
	ctx := context.Background()
	first := &models.Account{ID: id.UserID(uuid.New()), Email: "dup@example.org", PasswordHash: []byte("x"), CreatedAt: time.Now()}
	second := &models.Account{ID: id.UserID(uuid.New()), Email: "dup@example.org", PasswordHash: []byte("y"), CreatedAt: time.Now()}

	s.Require().NoError(s.store.Create(ctx, first))
	s.ErrorIs(s.store.Create(ctx, second), sentinel.ErrAlreadyUsed)
}

func (s *PostgresAccountStoreSuite) TestNotFound() {
	_, err := s.store.FindByID(context.Background(), id.UserID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAccountStoreSuite) TestDelete() {
	ctx := context.Background()
	acc := &models.Account{ID: id.UserID(uuid.New()), Email: "gone@example.org", PasswordHash: []byte("x"), CreatedAt: time.Now()}
	s.Require().NoError(s.store.Create(ctx, acc))

	s.Require().NoError(s.store.Delete(ctx, acc.ID))
	_, err := s.store.FindByID(ctx, acc.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, acc.ID), sentinel.ErrNotFound)
}
