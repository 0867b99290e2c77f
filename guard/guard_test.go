package guard_test

import (
	"context"
	"testing"
	"time"

	"github.com/kilnworks/go-admin-gate/challenge"
	fakechallengerepo "github.com/kilnworks/go-admin-gate/challenge/repofakes"
	"github.com/kilnworks/go-admin-gate/guard"
	"github.com/kilnworks/go-admin-gate/principal"
	"github.com/kilnworks/go-admin-gate/session"
	fakesessionrepo "github.com/kilnworks/go-admin-gate/session/repofakes"
	"github.com/kilnworks/go-admin-gate/throttle"
	fakethrottlerepo "github.com/kilnworks/go-admin-gate/throttle/repofakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail      = "admin@example.com"
	adminPhone      = "+919876543210"
	maxAttempts     = 3
	lockoutDuration = 15 * time.Minute
	codeValidity    = 5 * time.Minute
	sessionLifetime = 2 * time.Hour
	resendCooldown  = 30 * time.Second
)

type testGateConfig struct{}

func (testGateConfig) GetMaxAttempts() int                  { return maxAttempts }
func (testGateConfig) GetLockoutDuration() time.Duration    { return lockoutDuration }
func (testGateConfig) GetCodeLength() int                   { return 6 }
func (testGateConfig) GetCodeValidity() time.Duration       { return codeValidity }
func (testGateConfig) GetSessionLifetime() time.Duration    { return sessionLifetime }
func (testGateConfig) GetResendCooldown() time.Duration     { return resendCooldown }
func (testGateConfig) GetRevalidateInterval() time.Duration { return time.Minute }

type recordingSender struct {
	lastCode string
	fail     error
}

func (s *recordingSender) SendCode(_ context.Context, _, code string) error {
	if s.fail != nil {
		return s.fail
	}
	s.lastCode = code
	return nil
}

func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0] = '9'
	}
	return string(b)
}

type fixture struct {
	guard       *guard.Guard
	emailSender *recordingSender
	smsSender   *recordingSender
	now         time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		emailSender: &recordingSender{},
		smsSender:   &recordingSender{},
		now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }

	p, err := principal.New(adminEmail, adminPhone)
	require.NoError(t, err)

	ledger, err := throttle.NewLedger(
		fakethrottlerepo.NewFakeThrottleRepo(),
		maxAttempts,
		lockoutDuration,
		throttle.WithNowTime(nowFunc),
	)
	require.NoError(t, err)

	challengeRepo := fakechallengerepo.NewFakeChallengeRepo()
	issuer, err := challenge.NewIssuer(
		challengeRepo,
		map[challenge.Channel]challenge.Sender{
			challenge.ChannelEmail: f.emailSender,
			challenge.ChannelSMS:   f.smsSender,
		},
		6,
		codeValidity,
		challenge.WithIssuerNowTime(nowFunc),
	)
	require.NoError(t, err)

	verifier, err := challenge.NewVerifier(challengeRepo, challenge.WithVerifierNowTime(nowFunc))
	require.NoError(t, err)

	sessions, err := session.NewIssuer(
		fakesessionrepo.NewFakeSessionRepo(),
		[]byte("test-signing-key-test-signing-key"),
		sessionLifetime,
		session.WithNowTime(nowFunc),
	)
	require.NoError(t, err)

	g, err := guard.New(p, guard.Components{
		Ledger:   ledger,
		Issuer:   issuer,
		Verifier: verifier,
		Sessions: sessions,
	}, testGateConfig{}, guard.WithNowTime(nowFunc))
	require.NoError(t, err)
	f.guard = g

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, g.Start(ctx))

	return f
}

func requireState(t *testing.T, f *fixture, want guard.State) {
	t.Helper()

	status, err := f.guard.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, status.State)
}

func TestFullWalkWithOneMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requireState(t, f, guard.StateNeedsIdentity)

	require.NoError(t, f.guard.SubmitIdentity(ctx, "Admin@Example.com"))
	requireState(t, f, guard.StateAwaitingEmailCode)

	// One wrong code consumes attempt budget but does not advance.
	err := f.guard.SubmitEmailCode(ctx, wrongCode(f.emailSender.lastCode))
	require.ErrorIs(t, err, challenge.ErrCodeMismatch)
	requireState(t, f, guard.StateAwaitingEmailCode)

	require.NoError(t, f.guard.SubmitEmailCode(ctx, f.emailSender.lastCode))
	requireState(t, f, guard.StateAwaitingPhoneCode)
	require.NotEmpty(t, f.smsSender.lastCode)

	s, err := f.guard.SubmitPhoneCode(ctx, f.smsSender.lastCode)
	require.NoError(t, err)
	require.NotEmpty(t, s.Credential)
	requireState(t, f, guard.StateAuthenticated)

	_, err = f.guard.ValidateCredential(ctx, s.Credential)
	require.NoError(t, err)
}

func TestLockoutAfterThreeWrongIdentities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < maxAttempts; i++ {
		err := f.guard.SubmitIdentity(ctx, "intruder@example.com")
		require.ErrorIs(t, err, guard.ErrIdentityMismatch)
	}
	requireState(t, f, guard.StateLocked)

	status, err := f.guard.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, lockoutDuration, status.LockoutRemaining)

	// Every submission during the window is rejected, even a correct one.
	var lockedErr *guard.LockedOutError
	err = f.guard.SubmitIdentity(ctx, adminEmail)
	require.ErrorAs(t, err, &lockedErr)
	require.True(t, lockedErr.Remaining > 0)

	err = f.guard.SubmitEmailCode(ctx, "123456")
	require.ErrorAs(t, err, &lockedErr)

	// Once the window passes the gate returns to the identity step.
	f.advance(lockoutDuration + time.Second)
	requireState(t, f, guard.StateNeedsIdentity)
	require.NoError(t, f.guard.SubmitIdentity(ctx, adminEmail))
}

func TestWrongStepSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.guard.SubmitEmailCode(ctx, "123456")
	require.ErrorIs(t, err, guard.ErrWrongStep)

	_, err = f.guard.SubmitPhoneCode(ctx, "123456")
	require.ErrorIs(t, err, guard.ErrWrongStep)

	err = f.guard.Resend(ctx)
	require.ErrorIs(t, err, guard.ErrWrongStep)
}

func TestDeliveryFailureDoesNotConsumeAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.emailSender.fail = errors.New("smtp connection refused")

	// More delivery failures than the attempt budget allows.
	for i := 0; i < maxAttempts+1; i++ {
		err := f.guard.SubmitIdentity(ctx, adminEmail)

		var deliveryErr *challenge.DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		requireState(t, f, guard.StateNeedsIdentity)
	}

	// The gate is not locked and the walk proceeds once the transport
	// recovers.
	f.emailSender.fail = nil
	require.NoError(t, f.guard.SubmitIdentity(ctx, adminEmail))
	requireState(t, f, guard.StateAwaitingEmailCode)
}

func TestResendCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.guard.SubmitIdentity(ctx, adminEmail))
	firstCode := f.emailSender.lastCode

	// The initial send started the cooldown.
	err := f.guard.Resend(ctx)
	require.ErrorIs(t, err, guard.ErrResendCooldown)

	f.advance(resendCooldown + time.Second)
	require.NoError(t, f.guard.Resend(ctx))

	// The resent code supersedes the first one.
	if firstCode != f.emailSender.lastCode {
		err = f.guard.SubmitEmailCode(ctx, firstCode)
		require.ErrorIs(t, err, challenge.ErrCodeMismatch)
	}
	require.NoError(t, f.guard.SubmitEmailCode(ctx, f.emailSender.lastCode))
}

func TestSessionExpiryForcesReauthentication(t *testing.T) {
	f := newFixture(t)

	authenticate(t, f)
	requireState(t, f, guard.StateAuthenticated)

	f.advance(sessionLifetime + time.Minute)
	requireState(t, f, guard.StateNeedsIdentity)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := authenticate(t, f)
	require.NoError(t, f.guard.Logout(ctx))
	requireState(t, f, guard.StateNeedsIdentity)

	_, err := f.guard.ValidateCredential(ctx, s.Credential)
	require.ErrorIs(t, err, session.ErrSessionInvalid)
}

func TestSuccessResetsAttemptBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Burn two of three attempts, then authenticate.
	for i := 0; i < maxAttempts-1; i++ {
		err := f.guard.SubmitIdentity(ctx, "intruder@example.com")
		require.ErrorIs(t, err, guard.ErrIdentityMismatch)
	}
	authenticate(t, f)

	// After logout the budget is full again: two fresh failures must not
	// lock the gate.
	require.NoError(t, f.guard.Logout(ctx))
	for i := 0; i < maxAttempts-1; i++ {
		err := f.guard.SubmitIdentity(ctx, "intruder@example.com")
		require.ErrorIs(t, err, guard.ErrIdentityMismatch)
	}
	requireState(t, f, guard.StateNeedsIdentity)
}

// authenticate walks the fixture's guard through the full happy path.
func authenticate(t *testing.T, f *fixture) *session.Session {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.guard.SubmitIdentity(ctx, adminEmail))
	require.NoError(t, f.guard.SubmitEmailCode(ctx, f.emailSender.lastCode))
	s, err := f.guard.SubmitPhoneCode(ctx, f.smsSender.lastCode)
	require.NoError(t, err)
	return s
}
