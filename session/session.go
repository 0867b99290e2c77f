// Package session mints and validates the bounded-lifetime credential
// proving the gate was passed.
package session

import (
	"context"
	"time"
)

// Session is proof of a completed multi-factor authentication. The
// credential is a signed token; only issuance metadata is persisted.
type Session struct {
	JTI        string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Credential string // Only populated on issue, never stored
}

// Repo defines the interface for issued-session storage. A session that
// is deleted from the repo is revoked: validation checks membership, not
// just expiry.
type Repo interface {
	// Upsert stores the session metadata keyed by JTI
	Upsert(ctx context.Context, s *Session) error

	// Get retrieves session metadata by JTI. Returns ErrSessionInvalid
	// when the JTI was never issued or has been revoked
	Get(ctx context.Context, jti string) (*Session, error)

	// Delete revokes the session
	Delete(ctx context.Context, jti string) error

	// DeleteExpired removes sessions whose expiry is before the given time
	DeleteExpired(ctx context.Context, before time.Time) error
}
