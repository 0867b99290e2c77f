package challenge

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Verifier checks submitted codes against stored challenge records. It
// does not touch the throttle ledger; counting failures is the
// orchestrator's job so that throttling policy stays centralized.
type Verifier struct {
	repo    Repo
	nowTime func() time.Time
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

// WithVerifierNowTime sets the now time function (primarily for testing)
func WithVerifierNowTime(nowFunc func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

// NewVerifier initializes a Verifier over the given challenge storage.
func NewVerifier(repo Repo, options ...VerifierOption) (*Verifier, error) {
	if repo == nil {
		return nil, errors.New("[NewVerifier] repo is required")
	}

	verifier := &Verifier{
		repo:    repo,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(verifier)
	}

	return verifier, nil
}

// Verify checks the submitted code for (channel, address).
// ErrChallengeNotFound when no active challenge exists, ErrCodeMismatch
// when the code differs. On a match the challenge is consumed: a replay
// of the same code fails with ErrChallengeNotFound afterwards.
func (v *Verifier) Verify(ctx context.Context, channel Channel, address, submittedCode string) error {
	c, err := v.repo.Get(ctx, channel, address)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return ErrChallengeNotFound
		}
		return errors.Wrap(err, "[Verifier.Verify] repo.Get")
	}

	if !c.Active(v.nowTime()) {
		return ErrChallengeNotFound
	}

	if !CheckCodeHash(submittedCode, c.CodeHash) {
		return ErrCodeMismatch
	}

	if err := v.repo.Consume(ctx, channel, address); err != nil {
		return errors.Wrap(err, "[Verifier.Verify] repo.Consume")
	}
	return nil
}
