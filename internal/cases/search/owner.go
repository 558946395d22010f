package search

import (
	"net/url"
	"strings"

	"findthem/internal/cases/models"
	id "findthem/pkg/domain"
	"findthem/pkg/platform/predicate"
)

// OwnerFilter narrows a reporter's own case list. An empty Status means every
// status.
type OwnerFilter struct {
	Query  string
	Status models.Status
}

// ParseOwnerFilter reads q and status; status "all" is the same as omitting it.
func ParseOwnerFilter(values url.Values) (OwnerFilter, error) {
	f := OwnerFilter{Query: strings.TrimSpace(values.Get("q"))}
	raw := strings.ToLower(strings.TrimSpace(values.Get("status")))
	if raw == "" || raw == "all" {
		return f, nil
	}
	status, err := models.ParseStatus(raw)
	if err != nil {
		return OwnerFilter{}, err
	}
	f.Status = status
	return f, nil
}

// Predicate restricts the listing to owner's cases.
func (f OwnerFilter) Predicate(owner id.UserID) predicate.Predicate {
	parts := []predicate.Predicate{
		predicate.Eq(models.FieldReportedBy, owner),
		TextMatch(f.Query),
	}
	if f.Status != "" {
		parts = append(parts, predicate.Eq(models.FieldStatus, f.Status))
	}
	return predicate.And(parts...)
}
