package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "findthem/pkg/domain"
	dErrors "findthem/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer")
	userID     = id.UserID(uuid.New())
	expiresIn  = time.Hour
)

func Test_GenerateAccessToken(t *testing.T) {
	token, jti, expiresAt, err := jwtService.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, jti)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
	assert.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)

	subject, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, subject)
}

func Test_GenerateAccessToken_UniqueIDs(t *testing.T) {
	_, first, _, err := jwtService.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)
	_, second, _, err := jwtService.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, _, _, err := jwtService.GenerateAccessToken(userID, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer")
	token, _, _, err := other.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_WrongIssuer(t *testing.T) {
	other := NewJWTService("test-signing-key", "someone-else")
	token, _, _, err := other.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        uuid.NewString(),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_UsesInjectedClock(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc := NewJWTService("test-signing-key", "test-issuer", WithClock(func() time.Time { return clock }))

	token, _, _, err := svc.GenerateAccessToken(userID, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.NoError(t, err)

	clock = issued.Add(2 * time.Minute)
	_, err = svc.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}
