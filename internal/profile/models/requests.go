package models

import (
	"strings"

	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/email"
	"findthem/pkg/platform/validation"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Password         string `json:"password" validate:"required"`
	ConfirmPassword  string `json:"confirm_password" validate:"required"`
	FullName         string `json:"full_name" validate:"required,max=200"`
	OrganizationName string `json:"organization_name" validate:"required,max=200"`
	Role             string `json:"role" validate:"required,oneof=ngo police"`
	PoliceID         string `json:"police_id,omitempty" validate:"max=100"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
	r.OrganizationName = strings.TrimSpace(r.OrganizationName)
	r.Role = strings.ToLower(strings.TrimSpace(r.Role))
	r.PoliceID = strings.TrimSpace(r.PoliceID)
}

// Validate reports every violation together.
func (r *RegisterRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	if n := len(r.Password); n > 0 && (n < MinPasswordLength || n > MaxPasswordLength) {
		v.Add("password", "must be between 8 and 72 characters")
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		v.Add("confirm_password", "must match password")
	}
	if r.PoliceID != "" && Role(r.Role) != RolePolice {
		v.Add("police_id", "is only allowed for police registrations")
	}
	return v.Err()
}

// OptionalPoliceID returns the police id, nil when absent.
func (r *RegisterRequest) OptionalPoliceID() *string {
	if r.PoliceID == "" {
		return nil
	}
	v := r.PoliceID
	return &v
}
