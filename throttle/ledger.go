// Package throttle tracks failed authentication attempts per principal
// and trips a lockout window once the configured maximum is reached.
package throttle

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Ledger counts failures and applies lockouts. It only bookkeeps; policy
// decisions (what counts as a failure) belong to the caller.
type Ledger struct {
	repo        Repo
	maxAttempts int
	lockout     time.Duration
	nowTime     func() time.Time // nowTime function (injectable for testing)
}

// Option defines a function type to modify the Ledger instance.
type Option func(*Ledger)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(l *Ledger) {
		l.nowTime = nowFunc
	}
}

// NewLedger initializes a Ledger with the given storage and policy values.
func NewLedger(repo Repo, maxAttempts int, lockout time.Duration, options ...Option) (*Ledger, error) {
	if repo == nil {
		return nil, errors.New("[NewLedger] repo is required")
	}
	if maxAttempts <= 0 {
		return nil, errors.New("[NewLedger] maxAttempts must be positive")
	}
	if lockout <= 0 {
		return nil, errors.New("[NewLedger] lockout duration must be positive")
	}

	ledger := &Ledger{
		repo:        repo,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		nowTime:     time.Now,
	}

	for _, opt := range options {
		opt(ledger)
	}

	return ledger, nil
}

// RecordFailure increments the failure count by one. When the count
// reaches the configured maximum the lockout window starts.
func (l *Ledger) RecordFailure(ctx context.Context, key string) (State, error) {
	now := l.nowTime()

	state, err := l.repo.Get(ctx, key)
	if err != nil {
		return State{}, errors.Wrap(err, "[Ledger.RecordFailure] repo.Get")
	}

	// An expired lockout implicitly resets the count before the new
	// failure is recorded.
	if !state.LockedUntil.IsZero() && !state.Locked(now) {
		state = State{}
	}

	state.Failures++
	if state.Failures >= l.maxAttempts {
		state.LockedUntil = now.Add(l.lockout)
	}

	if err := l.repo.Upsert(ctx, key, state); err != nil {
		return State{}, errors.Wrap(err, "[Ledger.RecordFailure] repo.Upsert")
	}
	return state, nil
}

// IsLocked reports whether the key is currently locked out and, if so,
// for how much longer. Once the lockout passes the count resets to zero.
func (l *Ledger) IsLocked(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.nowTime()

	state, err := l.repo.Get(ctx, key)
	if err != nil {
		return false, 0, errors.Wrap(err, "[Ledger.IsLocked] repo.Get")
	}

	if state.Locked(now) {
		return true, state.LockedUntil.Sub(now), nil
	}

	if !state.LockedUntil.IsZero() {
		if err := l.repo.Delete(ctx, key); err != nil {
			return false, 0, errors.Wrap(err, "[Ledger.IsLocked] repo.Delete")
		}
	}
	return false, 0, nil
}

// Reset clears all failure bookkeeping for the key. Called after a fully
// successful authentication.
func (l *Ledger) Reset(ctx context.Context, key string) error {
	if err := l.repo.Delete(ctx, key); err != nil {
		return errors.Wrap(err, "[Ledger.Reset] repo.Delete")
	}
	return nil
}
