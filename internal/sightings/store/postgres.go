package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"findthem/internal/platform/postgres"
	"findthem/internal/sightings/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/sentinel"
	txcontext "findthem/pkg/platform/tx"
)

const sightingColumnList = `id, case_id, reporter_name, reporter_phone, reporter_email, sighting_date,
	sighting_location, description, photo_url, status, submitted_from, created_at, updated_at`

// PostgresStore persists sightings. Row-level policies restrict reads and
// updates to the owner of the parent case.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, sighting *models.Sighting) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sightings (`+sightingColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		sighting.ID.String(), sighting.CaseID.String(), sighting.ReporterName, sighting.ReporterPhone,
		nullString(sighting.ReporterEmail), sighting.SightingDate, sighting.SightingLocation,
		sighting.Description, nullString(sighting.PhotoURL), string(sighting.Status),
		nullString(sighting.SubmittedFrom), sighting.CreatedAt, sighting.UpdatedAt,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "sightings_pkey"):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sightingID id.SightingID) (*models.Sighting, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sightingColumnList+` FROM sightings WHERE id = $1`, sightingID.String())
	sighting, err := scanSighting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find sighting: %w", err)
	}
	return sighting, nil
}

// UpdateStatus is a compare-and-set on status.
func (s *PostgresStore) UpdateStatus(ctx context.Context, sightingID id.SightingID, from, to models.Status, at time.Time) error {
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE sightings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), at, sightingID.String(), string(from))
	if err != nil {
		return fmt.Errorf("update sighting status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sighting status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCase(ctx context.Context, caseID id.CaseID, limit int) ([]*models.Sighting, error) {
	return s.ListRecentByCases(ctx, []id.CaseID{caseID}, limit)
}

// ListRecentByCases returns sightings of any of the cases, newest first.
func (s *PostgresStore) ListRecentByCases(ctx context.Context, caseIDs []id.CaseID, limit int) ([]*models.Sighting, error) {
	out := make([]*models.Sighting, 0)
	if len(caseIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + sightingColumnList + ` FROM sightings
		WHERE case_id = ANY($1::uuid[])
		ORDER BY created_at DESC, id DESC`
	args := []any{pq.Array(caseIDStrings(caseIDs))}
	if limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sighting, err := scanSighting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		out = append(out, sighting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByCases(ctx context.Context, caseIDs []id.CaseID) (int, error) {
	if len(caseIDs) == 0 {
		return 0, nil
	}
	var n int
	err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sightings WHERE case_id = ANY($1::uuid[])`,
		pq.Array(caseIDStrings(caseIDs))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sightings: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSighting(row rowScanner) (*models.Sighting, error) {
	var (
		sighting      models.Sighting
		status        string
		reporterEmail sql.NullString
		photoURL      sql.NullString
		submittedFrom sql.NullString
	)
	err := row.Scan(
		(*uuid.UUID)(&sighting.ID), (*uuid.UUID)(&sighting.CaseID), &sighting.ReporterName,
		&sighting.ReporterPhone, &reporterEmail, &sighting.SightingDate, &sighting.SightingLocation,
		&sighting.Description, &photoURL, &status, &submittedFrom, &sighting.CreatedAt, &sighting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sighting.Status = models.Status(status)
	sighting.ReporterEmail = fromNull(reporterEmail)
	sighting.PhotoURL = fromNull(photoURL)
	sighting.SubmittedFrom = fromNull(submittedFrom)
	return &sighting, nil
}

func caseIDStrings(caseIDs []id.CaseID) []string {
	out := make([]string, len(caseIDs))
	for i, caseID := range caseIDs {
		out[i] = caseID.String()
	}
	return out
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
