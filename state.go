package socialconnect

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// GenerateState returns a 43-character base64url (no padding) string derived
// from 32 random bytes. Hosts use it as their own CSRF token around the
// redirect/callback legs, independently of a strategy's provider-state guard.
func GenerateState() (string, error) {
	b, err := randomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateNonce returns a 32-character hex string for oauth_nonce.
func generateNonce() (string, error) {
	b, err := randomBytes(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidateState compares two state strings in constant time.
// It returns an AuthError with Kind ErrKindInvalidCode if either value is
// empty or the values differ.
func ValidateState(expected, actual string) error {
	if expected == "" || actual == "" {
		return &AuthError{
			Kind:    ErrKindInvalidCode,
			Message: "state: expected and actual must not be empty",
		}
	}
	expectedHash := sha256.Sum256([]byte(expected))
	actualHash := sha256.Sum256([]byte(actual))
	if subtle.ConstantTimeCompare(expectedHash[:], actualHash[:]) != 1 {
		return &AuthError{
			Kind:    ErrKindInvalidCode,
			Message: "state mismatch",
		}
	}
	return nil
}
