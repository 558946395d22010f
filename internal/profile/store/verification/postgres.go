package verification

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

const requestColumnList = `id, user_id, organization_name, police_id, status, created_at, reviewed_at`

// PostgresStore persists verification requests. The unique user_id
// constraint enforces one request per profile.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, r *models.VerificationRequest) error {
	var policeID sql.NullString
	if r.PoliceID != nil {
		policeID = sql.NullString{String: *r.PoliceID, Valid: true}
	}
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verification_requests (`+requestColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		r.ID.String(), r.UserID.String(), r.OrganizationName, policeID, string(r.Status), r.CreatedAt, r.ReviewedAt,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "verification_requests_user_id_key"):
			return sentinel.ErrAlreadyUsed
		case postgres.IsUniqueViolation(err, "verification_requests_pkey"):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.VerificationRequestID) (*models.VerificationRequest, error) {
	return s.findOne(ctx, `SELECT `+requestColumnList+` FROM verification_requests WHERE id = $1`, requestID.String())
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID id.UserID) (*models.VerificationRequest, error) {
	return s.findOne(ctx, `SELECT `+requestColumnList+` FROM verification_requests WHERE user_id = $1`, userID.String())
}

// ListByStatus returns up to limit requests in status, oldest first.
func (s *PostgresStore) ListByStatus(ctx context.Context, status models.VerificationStatus, limit int) ([]*models.VerificationRequest, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT `+requestColumnList+` FROM verification_requests
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	defer rows.Close()

	out := make([]*models.VerificationRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list verification requests: %w", err)
	}
	return out, nil
}

// Review moves a pending request to status in a single conditional update.
func (s *PostgresStore) Review(ctx context.Context, requestID id.VerificationRequestID, status models.VerificationStatus, at time.Time) error {
	db := txcontext.Pick(ctx, s.db)
	res, err := db.ExecContext(ctx, `
		UPDATE verification_requests SET status = $1, reviewed_at = $2
		WHERE id = $3 AND status = 'pending'
	`, string(status), at, requestID.String())
	if err != nil {
		return fmt.Errorf("review verification request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review verification request: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verification_requests WHERE id = $1)`, requestID.String()).Scan(&exists); err != nil {
		return fmt.Errorf("review verification request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg string) (*models.VerificationRequest, error) {
	r, err := scanRequest(txcontext.Pick(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.VerificationRequest, error) {
	var (
		r          models.VerificationRequest
		status     string
		policeID   sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(
		(*uuid.UUID)(&r.ID), (*uuid.UUID)(&r.UserID), &r.OrganizationName, &policeID, &status,
		&r.CreatedAt, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.VerificationStatus(status)
	if policeID.Valid {
		r.PoliceID = &policeID.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		r.ReviewedAt = &t
	}
	return &r, nil
}
