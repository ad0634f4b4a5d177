package models

import (
	"time"
)

// Subscription plans shared by users and records
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Subscription durations accepted by /user/subscribe
const (
	DurationOneMonth = "oneMonth"
	DurationSixMonth = "sixMonth"
	DurationOneYear  = "oneYear"
)

// User holds identity, credentials, the single live session and subscription state.
type User struct {
	ID       string
	FullName string
	Email    string // lower-cased, unique
	PinHash  string
	Salt     string // client-side key derivation salt, opaque to the server

	Plan                 string
	SubscriptionDuration string     // empty when the user never subscribed
	SubscriptionExpiry   *time.Time // nil when not subscribed

	// Pending one-time code. Both fields are set together or both nil.
	VerificationCode       *string
	VerificationCodeExpiry *time.Time
	LastOtpSentTime        time.Time // earliest instant a resend is allowed

	SessionToken string // single valid bearer token, empty until first verification

	HashedPhrase     string
	HashedAnswer     string
	SecurityQuestion string
	EncryptedPhrase  string
	IsPhraseSet      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecoveryPhrase is the account recovery material written by /phrase-set.
// The hashes are server-side hashes of client digests.
type RecoveryPhrase struct {
	HashedPhrase     string
	HashedAnswer     string
	EncryptedPhrase  string
	SecurityQuestion string
}

// IsPremium reports whether the user currently holds the premium plan
func (u *User) IsPremium() bool {
	return u.Plan == PlanPremium
}

// HasPendingCode reports whether a one-time code is waiting to be verified
func (u *User) HasPendingCode() bool {
	return u.VerificationCode != nil && u.VerificationCodeExpiry != nil
}

// SetVerificationCode stores a pending code together with its expiry
func (u *User) SetVerificationCode(code string, expiresAt time.Time) {
	u.VerificationCode = &code
	u.VerificationCodeExpiry = &expiresAt
}

// ClearVerificationCode drops the pending code after it has been used
func (u *User) ClearVerificationCode() {
	u.VerificationCode = nil
	u.VerificationCodeExpiry = nil
}
