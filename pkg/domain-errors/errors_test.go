package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches wrapped domain error", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "case not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		err := Wrap(inner, CodeUpstream, "store failed")
		assert.True(t, Is(err, CodeUpstream))
		assert.Equal(t, CodeUpstream, CodeOf(err))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUpstream, "failed to load case")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load case: connection refused", err.Error())
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestViolations(t *testing.T) {
	var v Violations
	require.NoError(t, v.Err())

	v.Add("name", "is required")
	v.Add("age", "must be between 0 and 18")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeValidation))
	assert.Equal(t, []string{"name", "age"}, FieldsOf(err))
	assert.Contains(t, err.Error(), "age must be between 0 and 18")
}

func TestErrorsIsMatchesCodeAndMessage(t *testing.T) {
	err := fmt.Errorf("login: %w", New(CodeUnauthorized, "token has expired"))

	assert.ErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	assert.ErrorIs(t, err, &Error{Code: CodeUnauthorized})
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeForbidden, "token has expired"))
}
