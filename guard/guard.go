// Package guard sequences the multi-factor gate: identity check, email
// code, phone code, session issuance, with the throttle ledger applied
// around every credential failure.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/kilnworks/go-admin-gate/principal"
	"github.com/kilnworks/go-admin-gate/session"
	"github.com/kilnworks/go-admin-gate/throttle"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// State names a position in the gate's walk.
type State string

const (
	StateCheckingSession   State = "checking_session"
	StateNeedsIdentity     State = "needs_identity"
	StateAwaitingEmailCode State = "awaiting_email_code"
	StateAwaitingPhoneCode State = "awaiting_phone_code"
	StateLocked            State = "locked"
	StateAuthenticated     State = "authenticated"
)

// Status is the externally visible snapshot of the gate.
type Status struct {
	State            State
	LockoutRemaining time.Duration
	SessionExpiresAt time.Time
}

// Components holds all collaborator dependencies for the Guard.
type Components struct {
	Ledger   *throttle.Ledger    // Failure counting and lockout
	Issuer   *challenge.Issuer   // One-time code issuance
	Verifier *challenge.Verifier // One-time code verification
	Sessions *session.Issuer     // Session minting and validation
}

// Guard is the orchestrator state machine. All operations are serialized
// by a mutex: a submission while another is in flight simply waits, so
// duplicate issuance and double-counted failures cannot happen.
type Guard struct {
	mu         sync.Mutex
	components Components
	principal  principal.Principal
	state      State
	credential string
	sessionExp time.Time

	resend          map[challenge.Channel]*rate.Limiter
	revalidateEvery time.Duration
	nowTime         func() time.Time // nowTime function (injectable for testing)
}

// Option defines a function type to modify the Guard instance.
type Option func(*Guard)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Guard) {
		g.nowTime = nowFunc
	}
}

// New initializes a Guard for the configured principal.
func New(p principal.Principal, components Components, cfg config.GateConfig, options ...Option) (*Guard, error) {
	if components.Ledger == nil {
		return nil, errors.New("[guard.New] Ledger is required")
	}
	if components.Issuer == nil {
		return nil, errors.New("[guard.New] Issuer is required")
	}
	if components.Verifier == nil {
		return nil, errors.New("[guard.New] Verifier is required")
	}
	if components.Sessions == nil {
		return nil, errors.New("[guard.New] Sessions is required")
	}

	cooldown := cfg.GetResendCooldown()
	g := &Guard{
		components: components,
		principal:  p,
		state:      StateCheckingSession,
		resend: map[challenge.Channel]*rate.Limiter{
			challenge.ChannelEmail: rate.NewLimiter(rate.Every(cooldown), 1),
			challenge.ChannelSMS:   rate.NewLimiter(rate.Every(cooldown), 1),
		},
		revalidateEvery: cfg.GetRevalidateInterval(),
		nowTime:         time.Now,
	}

	for _, opt := range options {
		opt(g)
	}

	return g, nil
}

// Start resolves the initial CheckingSession state and launches the
// periodic revalidation loop. The loop stops when ctx is cancelled.
func (g *Guard) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateCheckingSession {
		if err := g.resolveLockout(ctx); err != nil {
			if _, ok := err.(*LockedOutError); !ok {
				return err
			}
		}
		if g.state != StateLocked {
			g.state = StateNeedsIdentity
		}
	}

	go g.revalidateLoop(ctx)
	return nil
}

// Status reports the current state, resolving any expired lockout or
// session first.
func (g *Guard) Status(ctx context.Context) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	remaining := time.Duration(0)
	if err := g.resolveLockout(ctx); err != nil {
		lockedErr, ok := err.(*LockedOutError)
		if !ok {
			return Status{}, err
		}
		remaining = lockedErr.Remaining
	}
	g.resolveSession(ctx)

	return Status{
		State:            g.state,
		LockoutRemaining: remaining,
		SessionExpiresAt: g.sessionExp,
	}, nil
}

// SubmitIdentity checks the submitted email against the principal and,
// on a match, issues the email challenge.
func (g *Guard) SubmitIdentity(ctx context.Context, email string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.resolveLockout(ctx); err != nil {
		return err
	}
	if g.state != StateNeedsIdentity {
		return ErrWrongStep
	}

	if !g.principal.MatchesEmail(email) {
		if err := g.recordFailure(ctx); err != nil {
			return err
		}
		return ErrIdentityMismatch
	}

	if err := g.issueChallenge(ctx, challenge.ChannelEmail, g.principal.Email, false); err != nil {
		// Transport failures do not consume attempt budget and do not
		// advance the walk.
		return err
	}

	g.state = StateAwaitingEmailCode
	return nil
}

// SubmitEmailCode verifies the emailed code and, on success, issues the
// phone challenge.
func (g *Guard) SubmitEmailCode(ctx context.Context, code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.resolveLockout(ctx); err != nil {
		return err
	}
	if g.state != StateAwaitingEmailCode {
		return ErrWrongStep
	}

	if err := g.verify(ctx, challenge.ChannelEmail, g.principal.Email, code); err != nil {
		return err
	}

	// The email leg is proven either way; a failed phone send is
	// surfaced but recoverable via Resend.
	g.state = StateAwaitingPhoneCode
	if err := g.issueChallenge(ctx, challenge.ChannelSMS, g.principal.Phone, false); err != nil {
		return err
	}
	return nil
}

// SubmitPhoneCode verifies the texted code and, on success, mints the
// session and unblocks the protected area.
func (g *Guard) SubmitPhoneCode(ctx context.Context, code string) (*session.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.resolveLockout(ctx); err != nil {
		return nil, err
	}
	if g.state != StateAwaitingPhoneCode {
		return nil, ErrWrongStep
	}

	if err := g.verify(ctx, challenge.ChannelSMS, g.principal.Phone, code); err != nil {
		return nil, err
	}

	s, err := g.components.Sessions.Issue(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Guard.SubmitPhoneCode] Sessions.Issue")
	}

	if err := g.components.Ledger.Reset(ctx, g.principal.Key()); err != nil {
		return nil, errors.Wrap(err, "[Guard.SubmitPhoneCode] Ledger.Reset")
	}

	g.state = StateAuthenticated
	g.credential = s.Credential
	g.sessionExp = s.ExpiresAt

	log.Info().Time("expires_at", s.ExpiresAt).Msg("authentication complete, session issued")
	return s, nil
}

// Resend reissues the code for the step the gate is waiting on, subject
// to the per-channel cooldown.
func (g *Guard) Resend(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.resolveLockout(ctx); err != nil {
		return err
	}

	switch g.state {
	case StateAwaitingEmailCode:
		return g.issueChallenge(ctx, challenge.ChannelEmail, g.principal.Email, true)
	case StateAwaitingPhoneCode:
		return g.issueChallenge(ctx, challenge.ChannelSMS, g.principal.Phone, true)
	default:
		return ErrWrongStep
	}
}

// Logout revokes the current session and returns the gate to the
// identity step. Re-entry requires the full walk again.
func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.credential != "" {
		if err := g.components.Sessions.Revoke(ctx, g.credential); err != nil {
			return errors.Wrap(err, "[Guard.Logout] Sessions.Revoke")
		}
	}

	g.credential = ""
	g.sessionExp = time.Time{}
	g.state = StateNeedsIdentity
	return nil
}

// ValidateCredential checks a presented session credential. Used by the
// protected area on every access.
func (g *Guard) ValidateCredential(ctx context.Context, credential string) (*session.Session, error) {
	return g.components.Sessions.Validate(ctx, credential)
}

// resolveLockout consults the ledger, synchronizing the state machine
// with it: entering Locked when a window is active and auto-returning to
// NeedsIdentity once it has passed. Callers must hold the mutex.
func (g *Guard) resolveLockout(ctx context.Context) error {
	locked, remaining, err := g.components.Ledger.IsLocked(ctx, g.principal.Key())
	if err != nil {
		return errors.Wrap(err, "[Guard] Ledger.IsLocked")
	}

	if locked {
		g.state = StateLocked
		return &LockedOutError{Remaining: remaining}
	}

	if g.state == StateLocked {
		g.state = StateNeedsIdentity
	}
	return nil
}

// resolveSession drops an expired or revoked session, forcing full
// re-authentication. Callers must hold the mutex.
func (g *Guard) resolveSession(ctx context.Context) {
	if g.state != StateAuthenticated {
		return
	}
	if _, err := g.components.Sessions.Validate(ctx, g.credential); err != nil {
		log.Debug().Err(err).Msg("session no longer valid, requiring re-authentication")
		g.credential = ""
		g.sessionExp = time.Time{}
		g.state = StateNeedsIdentity
	}
}

// verify runs the code check and books credential failures (and only
// those) into the throttle ledger.
func (g *Guard) verify(ctx context.Context, ch challenge.Channel, address, code string) error {
	err := g.components.Verifier.Verify(ctx, ch, address, code)
	if err == nil {
		return nil
	}

	if errors.Is(err, challenge.ErrCodeMismatch) || errors.Is(err, challenge.ErrChallengeNotFound) {
		if recordErr := g.recordFailure(ctx); recordErr != nil {
			return recordErr
		}
		return err
	}
	return errors.Wrap(err, "[Guard] Verifier.Verify")
}

// issueChallenge sends a code over the channel. Resends consult the
// cooldown limiter; initial sends merely consume it so an immediate
// resend has to wait.
func (g *Guard) issueChallenge(ctx context.Context, ch challenge.Channel, address string, isResend bool) error {
	limiter := g.resend[ch]
	if isResend {
		if !limiter.AllowN(g.nowTime(), 1) {
			return ErrResendCooldown
		}
	} else {
		limiter.AllowN(g.nowTime(), 1)
	}

	if _, err := g.components.Issuer.Issue(ctx, ch, address); err != nil {
		var deliveryErr *challenge.DeliveryError
		if errors.As(err, &deliveryErr) {
			log.Warn().Err(deliveryErr).Str("channel", string(ch)).Msg("code delivery failed")
			return deliveryErr
		}
		return errors.Wrap(err, "[Guard] Issuer.Issue")
	}
	return nil
}

func (g *Guard) recordFailure(ctx context.Context) error {
	state, err := g.components.Ledger.RecordFailure(ctx, g.principal.Key())
	if err != nil {
		return errors.Wrap(err, "[Guard] Ledger.RecordFailure")
	}
	if state.Locked(g.nowTime()) {
		g.state = StateLocked
	}
	return nil
}

// revalidateLoop periodically re-checks session validity and lockout
// expiry. This is the gate's only background activity; it stops with the
// context so no timer leaks past teardown.
func (g *Guard) revalidateLoop(ctx context.Context) {
	ticker := time.NewTicker(g.revalidateEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			_ = g.resolveLockoutQuiet(ctx)
			g.resolveSession(ctx)
			g.mu.Unlock()

			if err := g.components.Sessions.CleanupExpired(ctx); err != nil {
				log.Warn().Err(err).Msg("session cleanup failed")
			}
		}
	}
}

func (g *Guard) resolveLockoutQuiet(ctx context.Context) error {
	err := g.resolveLockout(ctx)
	if _, ok := err.(*LockedOutError); ok {
		return nil
	}
	return err
}
