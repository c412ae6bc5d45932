package auth

import (
	"fmt"
	"time"

	"github.com/gizaguri/notion-memo-gateway/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenTTL bounds how long the client has to trade the redirect
// token for a verified identity. Long enough to survive the app-scheme
// hand-off, short enough to limit replay.
const SessionTokenTTL = 5 * time.Minute

// TokenIssuer mints and verifies the short-lived session tokens carried
// across the OAuth redirect back into the mobile client. The token only
// transports the user identity with an integrity guarantee; it grants no
// access to Notion itself.
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a TokenIssuer signing with the given secret.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue produces a signed JWT with subject = identity, expiring after
// SessionTokenTTL.
func (ti *TokenIssuer) Issue(identity string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identity,
		"iat": now.Unix(),
		"exp": now.Add(SessionTokenTTL).Unix(),
	})

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded identity.
// Tampered, expired, or otherwise unusable tokens map to ErrInvalidToken.
func (ti *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Reject non-HMAC algorithms to prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return "", models.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", models.ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", models.ErrInvalidToken
	}

	return subject, nil
}
