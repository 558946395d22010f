package domain

import (
	"github.com/google/uuid"

	dErrors "findthem/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so one kind of id can never be passed
// where another is expected.
type (
	UserID                uuid.UUID
	CaseID                uuid.UUID
	SightingID            uuid.UUID
	VerificationRequestID uuid.UUID
)

const maxIDLength = 64

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s, "case id")
	return CaseID(u), err
}

func ParseSightingID(s string) (SightingID, error) {
	u, err := parseUUID(s, "sighting id")
	return SightingID(u), err
}

func ParseVerificationRequestID(s string) (VerificationRequestID, error) {
	u, err := parseUUID(s, "verification request id")
	return VerificationRequestID(u), err
}

func NewUserID() UserID         { return UserID(uuid.New()) }
func NewCaseID() CaseID         { return CaseID(uuid.New()) }
func NewSightingID() SightingID { return SightingID(uuid.New()) }
func NewVerificationRequestID() VerificationRequestID {
	return VerificationRequestID(uuid.New())
}

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id CaseID) String() string { return uuid.UUID(id).String() }
func (id CaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *CaseID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id SightingID) String() string { return uuid.UUID(id).String() }
func (id SightingID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SightingID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *SightingID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id VerificationRequestID) String() string { return uuid.UUID(id).String() }
func (id VerificationRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VerificationRequestID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}
func (id *VerificationRequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
