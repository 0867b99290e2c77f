package challenge

import "context"

// Repo defines the interface for challenge storage. At most one challenge
// exists per (channel, address); Upsert replaces any prior record, which
// is how issuing a new code supersedes the old one.
type Repo interface {
	// Upsert stores the challenge, replacing any existing record for
	// the same (channel, address)
	Upsert(ctx context.Context, c *Challenge) error

	// Get retrieves the challenge for (channel, address), consumed or not.
	// Returns ErrChallengeNotFound when none exists
	Get(ctx context.Context, channel Channel, address string) (*Challenge, error)

	// Consume marks the challenge for (channel, address) as used
	Consume(ctx context.Context, channel Channel, address string) error

	// Delete removes the challenge for (channel, address)
	Delete(ctx context.Context, channel Channel, address string) error
}
