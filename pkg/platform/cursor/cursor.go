// Package cursor encodes keyset pagination positions over (created_at, id)
// in descending order.
package cursor

import (
	"bytes"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "findthem/pkg/domain-errors"
)

// Cursor is the (created_at, id) of the last row of a page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode returns an opaque URL-safe token.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, dErrors.WithFields(dErrors.CodeValidation, "invalid cursor", "cursor")
	}
	nanos, idPart, ok := strings.Cut(string(raw), "|")
	if !ok {
		return Cursor{}, dErrors.WithFields(dErrors.CodeValidation, "invalid cursor", "cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, dErrors.WithFields(dErrors.CodeValidation, "invalid cursor", "cursor")
	}
	parsed, err := uuid.Parse(idPart)
	if err != nil {
		return Cursor{}, dErrors.WithFields(dErrors.CodeValidation, "invalid cursor", "cursor")
	}
	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}

// Precedes reports whether the row (createdAt, id) comes strictly after c in
// (created_at DESC, id DESC) order, i.e. belongs to a later page.
func (c Cursor) Precedes(createdAt time.Time, id uuid.UUID) bool {
	if !createdAt.Equal(c.CreatedAt) {
		return createdAt.Before(c.CreatedAt)
	}
	return bytes.Compare(id[:], c.ID[:]) < 0
}

// Less orders rows newest first, ties broken by id descending.
func Less(aCreated time.Time, aID uuid.UUID, bCreated time.Time, bID uuid.UUID) bool {
	if !aCreated.Equal(bCreated) {
		return aCreated.After(bCreated)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}
