package search

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"findthem/internal/cases/models"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/cursor"
	"findthem/pkg/platform/predicate"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 50
)

// PageRequest selects one page. An empty After starts from the newest case.
type PageRequest struct {
	After *cursor.Cursor
	Limit int
}

// ParsePage reads cursor and limit. Limits above MaxPageSize are clamped.
func ParsePage(values url.Values) (PageRequest, error) {
	page := PageRequest{Limit: DefaultPageSize}
	var v dErrors.Violations
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("limit", "must be a positive whole number")
		} else {
			page.Limit = min(n, MaxPageSize)
		}
	}
	if raw := strings.TrimSpace(values.Get("cursor")); raw != "" {
		c, err := cursor.Decode(raw)
		if err != nil {
			v.Add("cursor", "is invalid")
		} else {
			page.After = &c
		}
	}
	return page, v.Err()
}

// Page is one slice of results. NextCursor is empty on the last page.
type Page struct {
	Items      []*models.Case `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Querier reads cases matching where in (created_at DESC, id DESC) order,
// strictly after the cursor when one is given.
type Querier interface {
	Query(ctx context.Context, where predicate.Predicate, after *cursor.Cursor, limit int) ([]*models.Case, error)
}

// FetchPage reads one page, asking for one extra row to learn whether another
// page follows.
func FetchPage(ctx context.Context, q Querier, where predicate.Predicate, page PageRequest) (*Page, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	rows, err := q.Query(ctx, where, page.After, limit+1)
	if err != nil {
		return nil, err
	}
	out := &Page{Items: rows}
	if len(rows) > limit {
		out.Items = rows[:limit]
		last := out.Items[limit-1]
		out.NextCursor = cursor.Cursor{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.ID)}.Encode()
	}
	if out.Items == nil {
		out.Items = []*models.Case{}
	}
	return out, nil
}
