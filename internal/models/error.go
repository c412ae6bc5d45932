package models

import (
	"errors"
)

// Sentinel errors for the component layer. Controllers translate these to
// HTTP statuses; services wrap them with context via fmt.Errorf and %w.
var (
	// ErrUserNotFound means no credential row exists for the identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidState means the OAuth state parameter was missing from the
	// store: forged, replayed, or expired and swept.
	ErrInvalidState = errors.New("invalid or expired state parameter")

	// ErrInvalidToken means a session token failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid or expired session token")

	// ErrAuthExchangeFailed means Notion rejected the code exchange or
	// returned no usable identity/token pair.
	ErrAuthExchangeFailed = errors.New("failed to obtain token")

	// ErrUpstream means a Notion API call returned a non-2xx response.
	ErrUpstream = errors.New("notion api request failed")
)

// Error code constants used in log fields and error bodies
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"

	// OAuth flow errors
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeExchangeFailed = "AUTH_EXCHANGE_FAILED"

	// Distinct from NOT_FOUND on purpose: a decryption failure means key
	// rotation or corrupted storage, an operational problem.
	ErrCodeDecryption = "DECRYPTION_FAILED"

	ErrCodeUpstreamFetch = "UPSTREAM_FETCH_FAILED"
	ErrCodeUpstreamWrite = "UPSTREAM_WRITE_FAILED"
)
