package models

import (
	"time"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
	"findthem/pkg/email"
	"findthem/pkg/platform/validation"
)

// Account is a credential record owned by the identity gateway. The profile
// module keys its rows on the same id.
type Account struct {
	ID           id.UserID
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Metadata travels with a sign-up so the gateway can label the account. It is
// not authoritative; the profile row is.
type Metadata struct {
	FullName         string
	OrganizationName string
	Role             string
	PoliceID         string
}

// Session is an issued access token.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      id.UserID `json:"user_id"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
}

func (r *LoginRequest) Validate() error {
	var v dErrors.Violations
	validation.Struct(r, &v)
	return v.Err()
}
