package models

import (
	"strings"
	"time"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/email"
	"findthem/pkg/platform/validation"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusDismissed Status = "dismissed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusDismissed:
		return true
	}
	return false
}

// Sighting is a public report of having seen a missing child.
type Sighting struct {
	ID               id.SightingID `json:"id"`
	CaseID           id.CaseID     `json:"case_id"`
	ReporterName     string        `json:"reporter_name"`
	ReporterPhone    string        `json:"reporter_phone"`
	ReporterEmail    *string       `json:"reporter_email"`
	SightingDate     id.Date       `json:"sighting_date"`
	SightingLocation string        `json:"sighting_location"`
	Description      string        `json:"description"`
	PhotoURL         *string       `json:"photo_url"`
	Status           Status        `json:"status"`
	SubmittedFrom    *string       `json:"submitted_from"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// SubmitSightingRequest is the body of POST /sightings.
type SubmitSightingRequest struct {
	CaseID           string `json:"case_id" validate:"required"`
	ReporterName     string `json:"reporter_name" validate:"required,max=200"`
	ReporterPhone    string `json:"reporter_phone" validate:"required,max=50"`
	ReporterEmail    string `json:"reporter_email,omitempty" validate:"omitempty,email"`
	SightingDate     string `json:"sighting_date" validate:"required"`
	SightingLocation string `json:"sighting_location" validate:"required"`
	Description      string `json:"description" validate:"required"`
	PhotoURL         string `json:"photo_url,omitempty" validate:"omitempty,http_url"`
}

func (r *SubmitSightingRequest) Normalize() {
	r.CaseID = strings.TrimSpace(r.CaseID)
	r.ReporterName = strings.TrimSpace(r.ReporterName)
	r.ReporterPhone = strings.TrimSpace(r.ReporterPhone)
	r.ReporterEmail = email.Normalize(r.ReporterEmail)
	r.SightingDate = strings.TrimSpace(r.SightingDate)
	r.SightingLocation = strings.TrimSpace(r.SightingLocation)
	r.Description = strings.TrimSpace(r.Description)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
}

func (r *SubmitSightingRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	return v.Err()
}

// Build validates every field against today and returns the sighting
// content. Identity, status and timestamps are left to the caller.
func (r *SubmitSightingRequest) Build(today id.Date) (*Sighting, error) {
	r.Normalize()
	var v dErrors.Violations
	validation.Struct(r, &v)

	s := &Sighting{
		ReporterName:     r.ReporterName,
		ReporterPhone:    r.ReporterPhone,
		SightingLocation: r.SightingLocation,
		Description:      r.Description,
		ReporterEmail:    optional(r.ReporterEmail),
		PhotoURL:         optional(r.PhotoURL),
	}
	if r.CaseID != "" {
		caseID, err := id.ParseCaseID(r.CaseID)
		if err != nil {
			v.Add("case_id", "must be a case id")
		}
		s.CaseID = caseID
	}
	if r.SightingDate != "" {
		date, err := id.ParseDate(r.SightingDate)
		switch {
		case err != nil:
			v.Add("sighting_date", "must be a YYYY-MM-DD date")
		case date.After(today):
			v.Add("sighting_date", "must not be in the future")
		}
		s.SightingDate = date
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UpdateStatusRequest is the body of PATCH /dashboard/sightings/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending verified dismissed"`
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *UpdateStatusRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	return v.Err()
}

func (s *Sighting) Clone() *Sighting {
	clone := *s
	clone.ReporterEmail = clonePtr(s.ReporterEmail)
	clone.PhotoURL = clonePtr(s.PhotoURL)
	clone.SubmittedFrom = clonePtr(s.SubmittedFrom)
	return &clone
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
