// Package challenge issues and verifies one-time codes delivered over an
// out-of-band channel (email or SMS).
package challenge

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Channel identifies the delivery channel a challenge was issued over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Challenge records one issued code. The plaintext code is never stored;
// only its bcrypt hash is kept for later verification.
type Challenge struct {
	ID        string
	Channel   Channel
	Address   string
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// Active reports whether the challenge can still be verified: not yet
// consumed and not past its expiry.
func (c *Challenge) Active(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

// HashCode hashes a one-time code for storage.
func HashCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckCodeHash checks a submitted code against the stored hash.
func CheckCodeHash(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}
