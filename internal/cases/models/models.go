package models

import (
	"time"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
)

type Status string

const (
	StatusActive Status = "active"
	StatusFound  Status = "found"
	StatusClosed Status = "closed"
)

// Statuses lists every case status in display order.
var Statuses = []Status{StatusActive, StatusFound, StatusClosed}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusFound, StatusClosed:
		return true
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", dErrors.WithFields(dErrors.CodeValidation, "status must be one of active, found, closed", "status")
	}
	return s, nil
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Case is a missing-child record. CaseNumber, ReportedBy and CreatedAt never
// change after creation.
type Case struct {
	ID               id.CaseID `json:"id"`
	CaseNumber       string    `json:"case_number"`
	Name             string    `json:"name"`
	Age              int       `json:"age"`
	Gender           Gender    `json:"gender"`
	Description      string    `json:"description"`
	LastSeenDate     id.Date   `json:"last_seen_date"`
	LastSeenLocation string    `json:"last_seen_location"`
	ContactInfo      string    `json:"contact_info"`
	PhotoURL         *string   `json:"photo_url"`
	AdditionalPhotos []string  `json:"additional_photos"`
	Status           Status    `json:"status"`
	ReportedBy       id.UserID `json:"reported_by"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Field names usable in predicates over cases.
const (
	FieldID               = "id"
	FieldCaseNumber       = "case_number"
	FieldName             = "name"
	FieldAge              = "age"
	FieldGender           = "gender"
	FieldLastSeenDate     = "last_seen_date"
	FieldLastSeenLocation = "last_seen_location"
	FieldStatus           = "status"
	FieldReportedBy       = "reported_by"
	FieldCreatedAt        = "created_at"
)

// Field implements predicate.Record.
func (c *Case) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return c.ID, true
	case FieldCaseNumber:
		return c.CaseNumber, true
	case FieldName:
		return c.Name, true
	case FieldAge:
		return c.Age, true
	case FieldGender:
		return c.Gender, true
	case FieldLastSeenDate:
		return c.LastSeenDate, true
	case FieldLastSeenLocation:
		return c.LastSeenLocation, true
	case FieldStatus:
		return c.Status, true
	case FieldReportedBy:
		return c.ReportedBy, true
	case FieldCreatedAt:
		return c.CreatedAt, true
	}
	return nil, false
}

// IsPublic reports whether anyone may read the case.
func (c *Case) IsPublic() bool {
	return c.Status == StatusActive
}

// Clone returns a deep copy.
func (c *Case) Clone() *Case {
	out := *c
	if c.PhotoURL != nil {
		photo := *c.PhotoURL
		out.PhotoURL = &photo
	}
	out.AdditionalPhotos = append([]string{}, c.AdditionalPhotos...)
	return &out
}
