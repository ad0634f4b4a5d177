package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const otpSecretSize = 20

// OTPGenerator produces six-digit email codes. Each code is the HOTP value of a
// freshly drawn random secret, so codes are uniform over 000000-999999.
type OTPGenerator struct{}

// NewOTPGenerator creates a new OTPGenerator
func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{}
}

// Generate returns a new six-digit numeric code (leading zeros kept)
func (g *OTPGenerator) Generate() (string, error) {
	secret := make([]byte, otpSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to read random secret: %w", err)
	}

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret)
	code, err := hotp.GenerateCodeCustom(encoded, 0, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return code, nil
}

// GuestPolicy describes the demo accounts that log in with a fixed code
// instead of an emailed one. Disabled policies match nobody.
type GuestPolicy struct {
	enabled bool
	emails  map[string]struct{}
	code    string
	ttl     time.Duration
}

// NewGuestPolicy creates a GuestPolicy for the allow-listed emails
func NewGuestPolicy(enabled bool, emails []string, code string, ttl time.Duration) *GuestPolicy {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return &GuestPolicy{
		enabled: enabled && code != "",
		emails:  set,
		code:    code,
		ttl:     ttl,
	}
}

// IsGuest reports whether email is an enabled guest account
func (p *GuestPolicy) IsGuest(email string) bool {
	if p == nil || !p.enabled {
		return false
	}
	_, ok := p.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Code returns the fixed guest code
func (p *GuestPolicy) Code() string {
	return p.code
}

// TTL returns how long a guest code stays valid
func (p *GuestPolicy) TTL() time.Duration {
	return p.ttl
}
