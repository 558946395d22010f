package models

import (
	"strings"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	strutil "findthem/pkg/platform/strings"
	"findthem/pkg/platform/validation"
)

const (
	MinAge = 0
	MaxAge = 18
)

// CaseDetails are the owner-editable fields of a case.
type CaseDetails struct {
	Name             string
	Age              int
	Gender           Gender
	Description      string
	LastSeenDate     id.Date
	LastSeenLocation string
	ContactInfo      string
	PhotoURL         *string
	AdditionalPhotos []string
}

// DetailsOf extracts the editable fields of c.
func DetailsOf(c *Case) CaseDetails {
	clone := c.Clone()
	return CaseDetails{
		Name:             clone.Name,
		Age:              clone.Age,
		Gender:           clone.Gender,
		Description:      clone.Description,
		LastSeenDate:     clone.LastSeenDate,
		LastSeenLocation: clone.LastSeenLocation,
		ContactInfo:      clone.ContactInfo,
		PhotoURL:         clone.PhotoURL,
		AdditionalPhotos: clone.AdditionalPhotos,
	}
}

// ApplyTo copies the details onto c.
func (d CaseDetails) ApplyTo(c *Case) {
	c.Name = d.Name
	c.Age = d.Age
	c.Gender = d.Gender
	c.Description = d.Description
	c.LastSeenDate = d.LastSeenDate
	c.LastSeenLocation = d.LastSeenLocation
	c.ContactInfo = d.ContactInfo
	c.PhotoURL = d.PhotoURL
	c.AdditionalPhotos = d.AdditionalPhotos
	if c.AdditionalPhotos == nil {
		c.AdditionalPhotos = []string{}
	}
}

// check records every violation of the non-date, non-age fields.
func (d CaseDetails) check(v *dErrors.Violations) {
	if d.Name == "" {
		v.Add("name", "is required")
	}
	if !d.Gender.IsValid() {
		v.Add("gender", "must be one of male, female, other")
	}
	if d.Description == "" {
		v.Add("description", "is required")
	}
	if d.LastSeenLocation == "" {
		v.Add("last_seen_location", "is required")
	}
	if d.ContactInfo == "" {
		v.Add("contact_info", "is required")
	}
	if d.PhotoURL != nil && validation.Var(*d.PhotoURL, "http_url") != nil {
		v.Add("photo_url", "must be an absolute http(s) URL")
	}
	for _, photo := range d.AdditionalPhotos {
		if validation.Var(photo, "http_url") != nil {
			v.Add("additional_photos", "must contain absolute http(s) URLs")
			break
		}
	}
}

func checkAge(v *dErrors.Violations, age int) {
	if age < MinAge || age > MaxAge {
		v.Add("age", "must be between 0 and 18")
	}
}

// parseLastSeen parses raw and rejects dates after today.
func parseLastSeen(v *dErrors.Violations, raw string, today id.Date) id.Date {
	if raw == "" {
		v.Add("last_seen_date", "is required")
		return id.Date{}
	}
	date, err := id.ParseDate(raw)
	if err != nil {
		v.Add("last_seen_date", "must be a YYYY-MM-DD date")
		return id.Date{}
	}
	if date.After(today) {
		v.Add("last_seen_date", "must not be in the future")
	}
	return date
}

// CreateCaseRequest is the body of POST /dashboard/cases.
type CreateCaseRequest struct {
	Name             string   `json:"name" validate:"required,max=200"`
	Age              *int     `json:"age" validate:"required"`
	Gender           string   `json:"gender" validate:"required,oneof=male female other"`
	Description      string   `json:"description" validate:"required"`
	LastSeenDate     string   `json:"last_seen_date" validate:"required"`
	LastSeenLocation string   `json:"last_seen_location" validate:"required"`
	ContactInfo      string   `json:"contact_info" validate:"required"`
	PhotoURL         string   `json:"photo_url,omitempty" validate:"omitempty,http_url"`
	AdditionalPhotos []string `json:"additional_photos,omitempty" validate:"omitempty,dive,http_url"`
}

func (r *CreateCaseRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.Description = strings.TrimSpace(r.Description)
	r.LastSeenDate = strings.TrimSpace(r.LastSeenDate)
	r.LastSeenLocation = strings.TrimSpace(r.LastSeenLocation)
	r.ContactInfo = strings.TrimSpace(r.ContactInfo)
	r.PhotoURL = strings.TrimSpace(r.PhotoURL)
	r.AdditionalPhotos = strutil.TrimEach(r.AdditionalPhotos)
}

// Validate checks the request shape. The date is checked against the request
// clock by Details.
func (r *CreateCaseRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	if r.Age != nil {
		checkAge(&v, *r.Age)
	}
	return v.Err()
}

// Details validates every field and reports all violations together.
func (r *CreateCaseRequest) Details(today id.Date) (CaseDetails, error) {
	r.Normalize()
	var v dErrors.Violations
	d := CaseDetails{
		Name:             r.Name,
		Gender:           Gender(r.Gender),
		Description:      r.Description,
		LastSeenLocation: r.LastSeenLocation,
		ContactInfo:      r.ContactInfo,
		AdditionalPhotos: r.AdditionalPhotos,
	}
	if r.PhotoURL != "" {
		photo := r.PhotoURL
		d.PhotoURL = &photo
	}
	if r.Age == nil {
		v.Add("age", "is required")
	} else {
		d.Age = *r.Age
		checkAge(&v, d.Age)
	}
	d.LastSeenDate = parseLastSeen(&v, r.LastSeenDate, today)
	d.check(&v)
	return d, v.Err()
}

// UpdateCaseRequest is a partial edit; nil fields are left unchanged. An
// empty photo_url clears the primary photo.
type UpdateCaseRequest struct {
	Name             *string   `json:"name,omitempty"`
	Age              *int      `json:"age,omitempty"`
	Gender           *string   `json:"gender,omitempty"`
	Description      *string   `json:"description,omitempty"`
	LastSeenDate     *string   `json:"last_seen_date,omitempty"`
	LastSeenLocation *string   `json:"last_seen_location,omitempty"`
	ContactInfo      *string   `json:"contact_info,omitempty"`
	PhotoURL         *string   `json:"photo_url,omitempty"`
	AdditionalPhotos *[]string `json:"additional_photos,omitempty"`
}

func (r *UpdateCaseRequest) Normalize() {
	strutil.TrimPtr(r.Name)
	strutil.TrimPtr(r.Description)
	strutil.TrimPtr(r.LastSeenDate)
	strutil.TrimPtr(r.LastSeenLocation)
	strutil.TrimPtr(r.ContactInfo)
	strutil.TrimPtr(r.PhotoURL)
	if r.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*r.Gender))
		r.Gender = &g
	}
	if r.AdditionalPhotos != nil {
		photos := strutil.TrimEach(*r.AdditionalPhotos)
		r.AdditionalPhotos = &photos
	}
}

// Validate rejects an empty patch; field rules are applied by Apply.
func (r *UpdateCaseRequest) Validate() error {
	if r.Name == nil && r.Age == nil && r.Gender == nil && r.Description == nil &&
		r.LastSeenDate == nil && r.LastSeenLocation == nil && r.ContactInfo == nil &&
		r.PhotoURL == nil && r.AdditionalPhotos == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	return nil
}

// Apply overlays the patch on current and validates the result as a whole.
func (r *UpdateCaseRequest) Apply(current *Case, today id.Date) (CaseDetails, error) {
	r.Normalize()
	var v dErrors.Violations
	d := DetailsOf(current)
	if r.Name != nil {
		d.Name = *r.Name
	}
	if r.Age != nil {
		d.Age = *r.Age
	}
	checkAge(&v, d.Age)
	if r.Gender != nil {
		d.Gender = Gender(*r.Gender)
	}
	if r.Description != nil {
		d.Description = *r.Description
	}
	if r.LastSeenDate != nil {
		d.LastSeenDate = parseLastSeen(&v, *r.LastSeenDate, today)
	}
	if r.LastSeenLocation != nil {
		d.LastSeenLocation = *r.LastSeenLocation
	}
	if r.ContactInfo != nil {
		d.ContactInfo = *r.ContactInfo
	}
	if r.PhotoURL != nil {
		if *r.PhotoURL == "" {
			d.PhotoURL = nil
		} else {
			photo := *r.PhotoURL
			d.PhotoURL = &photo
		}
	}
	if r.AdditionalPhotos != nil {
		d.AdditionalPhotos = *r.AdditionalPhotos
	}
	d.check(&v)
	return d, v.Err()
}

// UpdateStatusRequest is the body of PATCH /dashboard/cases/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active found closed"`
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
}

func (r *UpdateStatusRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	return v.Err()
}
