package principal

import (
	"strings"

	"github.com/pkg/errors"
)

// Principal is the identity permitted to pass the gate. There is exactly
// one, configured at deployment; it is immutable at runtime.
type Principal struct {
	Email string
	Phone string
}

// New builds a Principal with normalized email and phone values.
func New(email, phone string) (Principal, error) {
	email = NormalizeEmail(email)
	phone = NormalizePhone(phone)
	if email == "" {
		return Principal{}, errors.New("[principal.New] email is required")
	}
	if phone == "" {
		return Principal{}, errors.New("[principal.New] phone is required")
	}
	return Principal{Email: email, Phone: phone}, nil
}

// MatchesEmail reports whether the submitted email identifies this principal.
func (p Principal) MatchesEmail(email string) bool {
	return NormalizeEmail(email) == p.Email
}

// MatchesPhone reports whether the submitted phone identifies this principal.
func (p Principal) MatchesPhone(phone string) bool {
	return NormalizePhone(phone) == p.Phone
}

// Key returns the value used to key throttle state for this principal.
func (p Principal) Key() string {
	return p.Email
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting characters, keeping digits and a
// leading "+".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
