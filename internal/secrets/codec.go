package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryption is returned when a stored blob cannot be decrypted: the
// framing is malformed, or the authentication tag does not verify (wrong key
// after a rotation, or tampered/corrupted storage). Callers must surface
// this distinctly instead of folding it into a not-found.
var ErrDecryption = errors.New("secret decryption failed")

// Codec encrypts and decrypts opaque secret strings with an AEAD cipher.
// The key is derived from operator-supplied key material of any length, so
// ENCRYPTION_KEY can be a passphrase. Safe for concurrent use.
type Codec struct {
	key []byte
}

// NewCodec derives a fixed-length key from the given key material.
func NewCodec(keyMaterial string) *Codec {
	key := sha256.Sum256([]byte(keyMaterial))
	return &Codec{key: key[:]}
}

// Encrypt seals plaintext with a fresh random nonce. The nonce is prepended
// to the ciphertext and the whole blob is base64-encoded so it can live in a
// text column.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Any framing or authentication failure maps to
// ErrDecryption.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid encoding", ErrDecryption)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	if len(blob) < aead.NonceSize() {
		return "", fmt.Errorf("%w: blob shorter than nonce", ErrDecryption)
	}

	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}
