// Package credstore persists access grants between requests so a host can
// restore a session's credential with Provider.SetAccessGrant.
package credstore

import (
	"context"
	"errors"

	socialconnect "github.com/mselvan/social-connect"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no credential is stored under a key or it has expired.
	ErrNotFound = errors.New("credstore: credential not found")

	// ErrMarshal is returned when a credential cannot be encoded.
	ErrMarshal = errors.New("credstore: failed to marshal credential")

	// ErrUnmarshal is returned when a stored credential cannot be decoded.
	ErrUnmarshal = errors.New("credstore: failed to unmarshal credential")
)

// Store saves credentials by an opaque key, typically a session id.
// Credentials with a known expiry are dropped once it passes.
type Store interface {
	Save(ctx context.Context, key string, c *socialconnect.Credential) error
	Load(ctx context.Context, key string) (*socialconnect.Credential, error)
	Delete(ctx context.Context, key string) error
}
