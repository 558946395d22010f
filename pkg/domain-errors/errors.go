// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Services return *Error values carrying a Code. Transports map codes to status
// codes without inspecting messages. Stores never return these directly; they
// return pkg/platform/sentinel errors that services translate.
package domainerrors

import (
	"errors"
	"strings"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	// CodeVerificationPending is a forbidden outcome for profiles awaiting review.
	CodeVerificationPending Code = "verification_pending"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeRateLimited         Code = "rate_limited"
	CodeUpstream            Code = "upstream_failure"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal_error"
)

// Error is a coded domain error. Fields lists offending input fields for
// validation failures.
type Error struct {
	Code    Code
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and, when set, the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WithFields creates a coded error naming the offending fields.
func WithFields(code Code, message string, fields ...string) error {
	return &Error{Code: code, Message: message, Fields: fields}
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the offending fields of a validation error.
func FieldsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

// Violations accumulates field-level validation failures so all of them are
// reported together.
type Violations struct {
	fields   []string
	messages []string
}

// Add records a violation for field.
func (v *Violations) Add(field, message string) {
	v.fields = append(v.fields, field)
	v.messages = append(v.messages, field+" "+message)
}

// Empty reports whether no violation was recorded.
func (v *Violations) Empty() bool {
	return len(v.fields) == 0
}

// Err returns nil when empty, otherwise a CodeValidation error listing every field.
func (v *Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{
		Code:    CodeValidation,
		Message: strings.Join(v.messages, "; "),
		Fields:  append([]string(nil), v.fields...),
	}
}
