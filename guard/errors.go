package guard

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrIdentityMismatch = errors.New("identity does not match the authorized principal")
	ErrWrongStep        = errors.New("submission does not match the current authentication step")
	ErrResendCooldown   = errors.New("wait before requesting another code")
)

// LockedOutError rejects a submission during an active lockout window.
type LockedOutError struct {
	Remaining time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("locked out for another %s", e.Remaining.Round(time.Second))
}
