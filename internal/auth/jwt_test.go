package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, err := svc.Generate("usr_123", "jo@acme.com", "admin")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_123", claims.ExternalID)
	assert.Equal(t, "jo@acme.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate("usr_123", "jo@acme.com", "member")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	claims := Claims{
		ExternalID: "usr_123",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateSubjectFallback(t *testing.T) {
	// Tokens from the identity provider may carry the user id only in sub.
	claims := Claims{
		Email: "jo@acme.com",
		Role:  "member",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_sub_only",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got, err := NewJWTService("test-secret", 1).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_sub_only", got.ExternalID)
}

func TestValidateNoIdentity(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := raw.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewJWTService("test-secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbage(t *testing.T) {
	_, err := NewJWTService("test-secret", 1).Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
