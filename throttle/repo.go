package throttle

import (
	"context"
	"time"
)

// State holds the per-principal failure bookkeeping.
type State struct {
	Failures    int
	LockedUntil time.Time
}

// Locked reports whether the state is locked at the given instant.
func (s State) Locked(now time.Time) bool {
	return s.LockedUntil.After(now)
}

// Repo defines the interface for throttle state storage. Get returns a
// zero State when no record exists for the key.
type Repo interface {
	Get(ctx context.Context, key string) (State, error)
	Upsert(ctx context.Context, key string, state State) error
	Delete(ctx context.Context, key string) error
}
