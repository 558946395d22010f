// Package search composes public case filters into predicate trees and pages
// through the results newest first.
package search

import (
	"net/url"
	"strconv"
	"strings"

	"findthem/internal/cases/models"
	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/platform/predicate"
)

// Filters are the public search parameters. Zero values are no-ops.
type Filters struct {
	Query    string
	AgeMin   *int
	AgeMax   *int
	Gender   models.Gender
	Location string
	DateFrom id.Date
	DateTo   id.Date
}

// ParseFilters reads q, age_min, age_max, gender, location, date_from and
// date_to. Every invalid value is reported.
func ParseFilters(values url.Values) (Filters, error) {
	var (
		f Filters
		v dErrors.Violations
	)
	f.Query = strings.TrimSpace(values.Get("q"))
	f.Location = strings.TrimSpace(values.Get("location"))
	f.AgeMin = parseAge(&v, "age_min", values.Get("age_min"))
	f.AgeMax = parseAge(&v, "age_max", values.Get("age_max"))
	if f.AgeMin != nil && f.AgeMax != nil && *f.AgeMin > *f.AgeMax {
		v.Add("age_min", "must not exceed age_max")
	}

	if raw := strings.ToLower(strings.TrimSpace(values.Get("gender"))); raw != "" && raw != "all" {
		f.Gender = models.Gender(raw)
		if !f.Gender.IsValid() {
			v.Add("gender", "must be one of male, female, other")
		}
	}

	f.DateFrom = parseDate(&v, "date_from", values.Get("date_from"))
	f.DateTo = parseDate(&v, "date_to", values.Get("date_to"))
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateFrom.After(f.DateTo) {
		v.Add("date_from", "must not be after date_to")
	}

	if err := v.Err(); err != nil {
		return Filters{}, err
	}
	return f, nil
}

func parseAge(v *dErrors.Violations, field, raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(field, "must be a whole number")
		return nil
	}
	return &n
}

func parseDate(v *dErrors.Violations, field, raw string) id.Date {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return id.Date{}
	}
	d, err := id.ParseDate(raw)
	if err != nil {
		v.Add(field, "must be a YYYY-MM-DD date")
		return id.Date{}
	}
	return d
}

// TextMatch is the free-text group: a case-insensitive substring of the name,
// the case number or the last-seen location.
func TextMatch(q string) predicate.Predicate {
	if q == "" {
		return predicate.All()
	}
	return predicate.Or(
		predicate.Contains(models.FieldName, q),
		predicate.Contains(models.FieldCaseNumber, q),
		predicate.Contains(models.FieldLastSeenLocation, q),
	)
}

// Predicate compiles f, always restricted to active cases.
func (f Filters) Predicate() predicate.Predicate {
	parts := []predicate.Predicate{
		predicate.Eq(models.FieldStatus, models.StatusActive),
		TextMatch(f.Query),
	}
	if f.AgeMin != nil {
		parts = append(parts, predicate.Gte(models.FieldAge, *f.AgeMin))
	}
	if f.AgeMax != nil {
		parts = append(parts, predicate.Lte(models.FieldAge, *f.AgeMax))
	}
	if f.Gender != "" {
		parts = append(parts, predicate.Eq(models.FieldGender, f.Gender))
	}
	if f.Location != "" {
		parts = append(parts, predicate.Contains(models.FieldLastSeenLocation, f.Location))
	}
	if !f.DateFrom.IsZero() {
		parts = append(parts, predicate.Gte(models.FieldLastSeenDate, f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		parts = append(parts, predicate.Lte(models.FieldLastSeenDate, f.DateTo))
	}
	return predicate.And(parts...)
}
