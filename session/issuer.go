package session

import (
	"context"
	"crypto/rand"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	issuerName       = "admin-gate"
	signingKeyLength = 32
)

// Issuer mints session credentials and validates them. Credentials are
// HS256 JWTs carrying a random JTI; the JTI must still be present in the
// repo for the credential to validate, which is how logout revocation
// works.
type Issuer struct {
	repo       Repo
	signingKey []byte
	lifetime   time.Duration
	nowTime    func() time.Time // nowTime function (injectable for testing)
}

// Option defines a function type to modify the Issuer instance.
type Option func(*Issuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// NewIssuer initializes an Issuer. An empty signingKey generates a random
// one; sessions signed with it will not survive a process restart.
func NewIssuer(repo Repo, signingKey []byte, lifetime time.Duration, options ...Option) (*Issuer, error) {
	if repo == nil {
		return nil, errors.New("[NewIssuer] repo is required")
	}
	if lifetime <= 0 {
		return nil, errors.New("[NewIssuer] lifetime must be positive")
	}

	if len(signingKey) == 0 {
		signingKey = make([]byte, signingKeyLength)
		if _, err := rand.Read(signingKey); err != nil {
			return nil, errors.Wrap(err, "[NewIssuer] rand.Read")
		}
	}

	issuer := &Issuer{
		repo:       repo,
		signingKey: signingKey,
		lifetime:   lifetime,
		nowTime:    time.Now,
	}

	for _, opt := range options {
		opt(issuer)
	}

	return issuer, nil
}

// Issue mints a new session with expiry = now + lifetime.
func (i *Issuer) Issue(ctx context.Context) (*Session, error) {
	now := i.nowTime()
	s := &Session{
		JTI:       uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.lifetime),
	}

	claims := jwtlib.MapClaims{
		"iss": issuerName,
		"jti": s.JTI,
		"iat": s.IssuedAt.Unix(),
		"exp": s.ExpiresAt.Unix(),
	}

	credential, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] SignedString")
	}

	if err := i.repo.Upsert(ctx, s); err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] repo.Upsert")
	}

	s.Credential = credential
	return s, nil
}

// Validate checks a credential for both presence and unexpired status.
// Returns the stored session on success, ErrSessionExpired when past its
// lifetime, ErrSessionInvalid for anything else (bad signature, unknown
// or revoked JTI).
func (i *Issuer) Validate(ctx context.Context, credential string) (*Session, error) {
	jti, expiresAt, err := i.parse(credential)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	if !i.nowTime().Before(expiresAt) {
		return nil, ErrSessionExpired
	}

	s, err := i.repo.Get(ctx, jti)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			return nil, ErrSessionInvalid
		}
		return nil, errors.Wrap(err, "[Issuer.Validate] repo.Get")
	}
	return s, nil
}

// Revoke invalidates a credential ahead of its expiry (logout).
func (i *Issuer) Revoke(ctx context.Context, credential string) error {
	jti, _, err := i.parse(credential)
	if err != nil {
		return ErrSessionInvalid
	}

	if err := i.repo.Delete(ctx, jti); err != nil {
		return errors.Wrap(err, "[Issuer.Revoke] repo.Delete")
	}
	return nil
}

// CleanupExpired removes expired sessions from storage.
func (i *Issuer) CleanupExpired(ctx context.Context) error {
	if err := i.repo.DeleteExpired(ctx, i.nowTime()); err != nil {
		return errors.Wrap(err, "[Issuer.CleanupExpired] repo.DeleteExpired")
	}
	return nil
}

func (i *Issuer) parse(credential string) (jti string, expiresAt time.Time, err error) {
	token, err := jwtlib.Parse(credential, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.signingKey, nil
	},
		jwtlib.WithIssuer(issuerName),
		jwtlib.WithTimeFunc(func() time.Time { return i.nowTime() }),
	)
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", time.Time{}, errors.New("unexpected claims type")
	}

	jti, _ = claims["jti"].(string)
	if jti == "" {
		return "", time.Time{}, errors.New("missing jti claim")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, errors.New("missing exp claim")
	}

	return jti, exp.Time, nil
}
