package models

import (
	"time"

	id "findthem/pkg/domain"
)

type Role string

const (
	RoleNGO    Role = "ngo"
	RolePolice Role = "police"
)

func (r Role) IsValid() bool {
	return r == RoleNGO || r == RolePolice
}

// RegistrationState marks profiles whose verification request still has to
// be written by the compensation worker.
type RegistrationState string

const (
	RegistrationComplete   RegistrationState = "complete"
	RegistrationIncomplete RegistrationState = "registration_incomplete"
)

// Profile is an organization account. Its id is the identity user id.
type Profile struct {
	ID                id.UserID         `json:"id"`
	Email             string            `json:"email"`
	FullName          string            `json:"full_name"`
	OrganizationName  string            `json:"organization_name"`
	Role              Role              `json:"role"`
	PoliceID          *string           `json:"police_id"`
	IsVerified        bool              `json:"is_verified"`
	RegistrationState RegistrationState `json:"registration_state"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (p *Profile) Clone() *Profile {
	clone := *p
	if p.PoliceID != nil {
		v := *p.PoliceID
		clone.PoliceID = &v
	}
	return &clone
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// VerificationRequest is the review record created at registration. There is
// at most one per profile.
type VerificationRequest struct {
	ID               id.VerificationRequestID `json:"id"`
	UserID           id.UserID                `json:"user_id"`
	OrganizationName string                   `json:"organization_name"`
	PoliceID         *string                  `json:"police_id"`
	Status           VerificationStatus       `json:"status"`
	CreatedAt        time.Time                `json:"created_at"`
	ReviewedAt       *time.Time               `json:"reviewed_at"`
}

func (r *VerificationRequest) Clone() *VerificationRequest {
	clone := *r
	if r.PoliceID != nil {
		v := *r.PoliceID
		clone.PoliceID = &v
	}
	if r.ReviewedAt != nil {
		v := *r.ReviewedAt
		clone.ReviewedAt = &v
	}
	return &clone
}

// NewVerificationRequest builds the pending request for p.
func NewVerificationRequest(p *Profile, now time.Time) *VerificationRequest {
	req := &VerificationRequest{
		ID:               id.NewVerificationRequestID(),
		UserID:           p.ID,
		OrganizationName: p.OrganizationName,
		Status:           VerificationPending,
		CreatedAt:        now,
	}
	if p.PoliceID != nil {
		v := *p.PoliceID
		req.PoliceID = &v
	}
	return req
}

// Status is the caller's own registration view returned by GET /me.
type Status struct {
	Profile             *Profile             `json:"profile"`
	VerificationRequest *VerificationRequest `json:"verification_request"`
}
