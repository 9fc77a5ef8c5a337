package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")

	token, err := svc.GenerateVerificationToken("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := svc.ValidateVerificationToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-one").GenerateVerificationToken("alice@example.com")
	require.NoError(t, err)

	_, err = NewTokenService("secret-two").ValidateVerificationToken(token)
	assert.Error(t, err)
}

func TestTokenTampered(t *testing.T) {
	svc := NewTokenService("test-secret")
	token, err := svc.GenerateVerificationToken("alice@example.com")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + ".eyJlbWFpbCI6ImV2aWxAZXhhbXBsZS5jb20ifQ." + parts[2]

	_, err = svc.ValidateVerificationToken(tampered)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	svc := NewTokenService("test-secret")

	_, err := svc.ValidateVerificationToken("not-a-jwt")
	assert.Error(t, err)

	_, err = svc.ValidateVerificationToken("")
	assert.Error(t, err)
}
