package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"findthem/internal/identity/models"
	"findthem/internal/platform/postgres"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
	txcontext "findthem/pkg/platform/tx"
)

// PostgresStore persists accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, account.ID.String(), account.Email, string(account.PasswordHash), account.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "accounts_email_key") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Delete removes the account; unknown ids are sentinel.ErrNotFound.
func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, userID.String())
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`, email)
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	return s.findOne(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1`, userID.String())
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var (
		account models.Account
		rawID   string
		hash    string
	)
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, arg).
		Scan(&rawID, &account.Email, &hash, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.ID, err = id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	account.PasswordHash = []byte(hash)
	return &account, nil
}
