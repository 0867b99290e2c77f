package challenge

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Sender delivers a one-time code to an address. Implementations wrap the
// actual transport (SMTP, SMS gateway).
type Sender interface {
	SendCode(ctx context.Context, address, code string) error
}

// Issuer generates one-time codes, hands them to the channel transport
// and persists the expected-challenge record for later verification.
type Issuer struct {
	repo       Repo
	senders    map[Channel]Sender
	codeLength int
	validity   time.Duration
	nowTime    func() time.Time // nowTime function (injectable for testing)
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithIssuerNowTime sets the now time function (primarily for testing)
func WithIssuerNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// NewIssuer initializes an Issuer. senders must hold a transport for
// every channel codes will be issued over.
func NewIssuer(repo Repo, senders map[Channel]Sender, codeLength int, validity time.Duration, options ...IssuerOption) (*Issuer, error) {
	if repo == nil {
		return nil, errors.New("[NewIssuer] repo is required")
	}
	if len(senders) == 0 {
		return nil, errors.New("[NewIssuer] at least one sender is required")
	}
	if codeLength <= 0 {
		return nil, errors.New("[NewIssuer] codeLength must be positive")
	}
	if validity <= 0 {
		return nil, errors.New("[NewIssuer] validity must be positive")
	}

	issuer := &Issuer{
		repo:       repo,
		senders:    senders,
		codeLength: codeLength,
		validity:   validity,
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(issuer)
	}

	return issuer, nil
}

// Issue generates a fresh code for (channel, address), delivers it and
// stores the challenge record. A delivery failure returns *DeliveryError
// and leaves any previously issued challenge untouched. On success the
// new record supersedes the prior one.
func (i *Issuer) Issue(ctx context.Context, channel Channel, address string) (*Challenge, error) {
	sender, ok := i.senders[channel]
	if !ok {
		return nil, errors.Errorf("[Issuer.Issue] no sender configured for channel %q", channel)
	}

	code, err := generateCode(i.codeLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] generateCode")
	}

	hash, err := HashCode(code)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] HashCode")
	}

	// Deliver before persisting: a failed send must not invalidate a
	// still-valid earlier challenge.
	if err := sender.SendCode(ctx, address, code); err != nil {
		return nil, &DeliveryError{Channel: channel, Cause: err}
	}

	now := i.nowTime()
	c := &Challenge{
		ID:        uuid.New().String(),
		Channel:   channel,
		Address:   address,
		CodeHash:  hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.validity),
	}

	if err := i.repo.Upsert(ctx, c); err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] repo.Upsert")
	}
	return c, nil
}

// generateCode returns a fixed-length numeric code from a crypto-secure
// random source.
func generateCode(length int) (string, error) {
	const digits = "0123456789"

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = digits[int(b)%len(digits)]
	}
	return string(buf), nil
}
