package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"findthem/internal/platform/postgres"
	"findthem/internal/profile/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
	txcontext "findthem/pkg/platform/tx"
)

const profileColumnList = `id, email, full_name, organization_name, role, police_id, is_verified,
	registration_state, created_at, updated_at`

// PostgresStore persists profiles. Every profile references an identity account.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, p *models.Profile) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.ID.String(), p.Email, p.FullName, p.OrganizationName, string(p.Role), nullString(p.PoliceID),
		p.IsVerified, string(p.RegistrationState), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "profiles_pkey") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+profileColumnList+` FROM profiles WHERE id = $1`, userID.String())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SetVerified(ctx context.Context, userID id.UserID, verified bool, at time.Time) error {
	return s.exec(ctx, "set profile verified",
		`UPDATE profiles SET is_verified = $1, updated_at = $2 WHERE id = $3`,
		verified, at, userID.String())
}

func (s *PostgresStore) SetRegistrationState(ctx context.Context, userID id.UserID, state models.RegistrationState, at time.Time) error {
	return s.exec(ctx, "set registration state",
		`UPDATE profiles SET registration_state = $1, updated_at = $2 WHERE id = $3`,
		string(state), at, userID.String())
}

// ListIncomplete returns up to limit incomplete registrations, oldest first.
// Inside a transaction the rows stay locked so concurrent workers skip them.
func (s *PostgresStore) ListIncomplete(ctx context.Context, limit int) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumnList + ` FROM profiles
		WHERE registration_state = 'registration_incomplete'
		ORDER BY created_at
		LIMIT $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE SKIP LOCKED`
	}
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list incomplete profiles: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incomplete profiles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p        models.Profile
		role     string
		state    string
		policeID sql.NullString
	)
	err := row.Scan(
		(*uuid.UUID)(&p.ID), &p.Email, &p.FullName, &p.OrganizationName, &role, &policeID,
		&p.IsVerified, &state, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	p.RegistrationState = models.RegistrationState(state)
	if policeID.Valid {
		p.PoliceID = &policeID.String
	}
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
