package auth

import (
	"testing"
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer("test-session-secret")

	token, err := issuer.Issue("notion-user-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Contains(t, token, ".") // compact JWT form

	identity, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "notion-user-42", identity)
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-session-secret")

	// Forge a token aged past the TTL with the same key
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "notion-user-42",
		"iat": time.Now().Add(-10 * time.Minute).Unix(),
		"exp": time.Now().Add(-5 * time.Minute).Unix(),
	})
	tokenString, err := expired.SignedString([]byte("test-session-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(tokenString)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").Issue("notion-user-42")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret-b").Verify(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-session-secret")

	for _, tokenString := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.Verify(tokenString)
		assert.ErrorIs(t, err, models.ErrInvalidToken)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	issuer := NewTokenIssuer("test-session-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	tokenString, err := token.SignedString([]byte("test-session-secret"))
	require.NoError(t, err)

	_, err = issuer.Verify(tokenString)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}
