package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"findthem/internal/cases/models"
	"findthem/internal/platform/postgres"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/predicate"
	"findthem/pkg/platform/sentinel"
	txcontext "findthem/pkg/platform/tx"
)

const caseColumnList = `id, case_number, name, age, gender, description, last_seen_date, last_seen_location,
	contact_info, photo_url, additional_photos, status, reported_by, created_at, updated_at`

// Columns maps predicate fields to missing_children columns.
var Columns = predicate.Columns{
	models.FieldID:               "id",
	models.FieldCaseNumber:       "case_number",
	models.FieldName:             "name",
	models.FieldAge:              "age",
	models.FieldGender:           "gender",
	models.FieldLastSeenDate:     "last_seen_date",
	models.FieldLastSeenLocation: "last_seen_location",
	models.FieldStatus:           "status",
	models.FieldReportedBy:       "reported_by",
	models.FieldCreatedAt:        "created_at",
}

// PostgresStore persists cases in the missing_children table. Statements run
// inside the caller's transaction when ctx carries one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, c *models.Case) error {
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO missing_children (`+caseColumnList+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		c.ID.String(), c.CaseNumber, c.Name, c.Age, string(c.Gender), c.Description, c.LastSeenDate,
		c.LastSeenLocation, c.ContactInfo, nullString(c.PhotoURL), pq.Array(nonNil(c.AdditionalPhotos)),
		string(c.Status), c.ReportedBy.String(), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err, "missing_children_case_number_key"):
			return sentinel.ErrAlreadyUsed
		case postgres.IsUniqueViolation(err, "missing_children_pkey"):
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	row := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+caseColumnList+` FROM missing_children WHERE id = $1`, caseID.String())
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

// Update writes the mutable fields when the row also matches where.
func (s *PostgresStore) Update(ctx context.Context, c *models.Case, where predicate.Predicate) error {
	const fixedArgs = 11
	cond, condArgs, err := where.SQL(Columns, fixedArgs+1)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	args := []any{
		c.Name, c.Age, string(c.Gender), c.Description, c.LastSeenDate, c.LastSeenLocation,
		c.ContactInfo, nullString(c.PhotoURL), pq.Array(nonNil(c.AdditionalPhotos)), string(c.Status),
		c.UpdatedAt,
	}
	args = append(args, condArgs...)
	args = append(args, c.ID.String())
	res, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE missing_children SET
			name = $1, age = $2, gender = $3, description = $4, last_seen_date = $5,
			last_seen_location = $6, contact_info = $7, photo_url = $8, additional_photos = $9,
			status = $10, updated_at = $11
		WHERE `+cond+` AND id = $`+strconv.Itoa(fixedArgs+1+len(condArgs)), args...)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Query returns matching cases newest first, strictly after the cursor.
func (s *PostgresStore) Query(ctx context.Context, where predicate.Predicate, after *cursor.Cursor, limit int) ([]*models.Case, error) {
	cond, args, err := where.SQL(Columns, 1)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	query := `SELECT ` + caseColumnList + ` FROM missing_children WHERE ` + cond
	if after != nil {
		n := len(args)
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, n+1, n+2)
		args = append(args, after.CreatedAt, after.ID.String())
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context, where predicate.Predicate) (int, error) {
	cond, args, err := where.SQL(Columns, 1)
	if err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}
	var n int
	if err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM missing_children WHERE `+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}
	return n, nil
}

// ListIDs returns the ids of every matching case, in no particular order.
func (s *PostgresStore) ListIDs(ctx context.Context, where predicate.Predicate) ([]id.CaseID, error) {
	cond, args, err := where.SQL(Columns, 1)
	if err != nil {
		return nil, fmt.Errorf("list case ids: %w", err)
	}
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `SELECT id FROM missing_children WHERE `+cond, args...)
	if err != nil {
		return nil, fmt.Errorf("list case ids: %w", err)
	}
	defer rows.Close()

	out := make([]id.CaseID, 0)
	for rows.Next() {
		var caseID id.CaseID
		if err := rows.Scan((*uuid.UUID)(&caseID)); err != nil {
			return nil, fmt.Errorf("scan case id: %w", err)
		}
		out = append(out, caseID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list case ids: %w", err)
	}
	return out, nil
}

// Exists answers through case_exists so anonymous callers can check cases
// they are not allowed to read.
func (s *PostgresStore) Exists(ctx context.Context, caseID id.CaseID) (bool, error) {
	var exists bool
	if err := txcontext.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT case_exists($1)`, caseID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check case exists: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		c        models.Case
		gender   string
		status   string
		photoURL sql.NullString
		photos   []string
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID), &c.CaseNumber, &c.Name, &c.Age, &gender, &c.Description, &c.LastSeenDate,
		&c.LastSeenLocation, &c.ContactInfo, &photoURL, pq.Array(&photos), &status,
		(*uuid.UUID)(&c.ReportedBy), &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Gender = models.Gender(gender)
	c.Status = models.Status(status)
	if photoURL.Valid {
		c.PhotoURL = &photoURL.String
	}
	c.AdditionalPhotos = nonNil(photos)
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
