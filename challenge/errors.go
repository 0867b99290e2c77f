package challenge

import (
	"errors"
	"fmt"
)

var (
	// ErrChallengeNotFound covers every case where no active challenge
	// exists: never issued, expired, already consumed, or superseded.
	ErrChallengeNotFound = errors.New("no active challenge for this channel")

	// ErrCodeMismatch means an active challenge exists but the submitted
	// code does not match it.
	ErrCodeMismatch = errors.New("code does not match")
)

// DeliveryError reports a transport failure while sending a code. It is
// distinct from credential errors so callers can avoid counting it
// against the attempt budget.
type DeliveryError struct {
	Channel Channel
	Cause   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("could not deliver code over %s: %v", e.Channel, e.Cause)
}

func (e *DeliveryError) Unwrap() error {
	return e.Cause
}
