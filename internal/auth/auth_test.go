package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	identity := Identity{
		ID:        "u1",
		Email:     "alice@example.com",
		Name:      "Alice",
		AvatarURL: "https://example.com/alice.png",
	}
	token, err := v.Token(identity, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, &identity, got)
}

func TestVerifier_RejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier([]byte("secret-a")).Token(Identity{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier([]byte("secret-b")).Verify(token)
	require.Error(t, err)
}

func TestVerifier_RejectsExpiredToken(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))
	token, err := v.Token(Identity{ID: "u1"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Error(t, err)
}

func TestVerifier_RejectsMissingSubject(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))
	token, err := v.Token(Identity{}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Error(t, err)
}

func TestVerifier_RejectsUnsignedToken(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.Error(t, err)
}

func TestIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "Alice", Identity{Name: "Alice", Email: "a@example.com"}.DisplayName())
	assert.Equal(t, "a@example.com", Identity{Email: "a@example.com"}.DisplayName())
	assert.Equal(t, "Anonymous user", Identity{}.DisplayName())
}
