package models

import "time"

// Record categories
const (
	CategoryPassword = "password"
	CategoryBank     = "bank"
	CategoryPersonal = "personal"
	CategoryCard     = "card"
	CategoryNote     = "note"
)

// Record statuses
const (
	StatusActive  = "active"
	StatusRecycle = "recycle"
)

// Record is an encrypted secret owned by exactly one user.
// EncryptedData and Salt are opaque to the server.
type Record struct {
	ID            string
	OwnerID       string
	Title         string
	EncryptedData string
	Salt          string
	Category      string
	Status        string
	// Plan is the per-record tag assigned by creation rank among the owner's
	// active records; it is independent of the owner's subscription.
	Plan              string
	DataRecycleExpiry *time.Time // set only while Status == StatusRecycle
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsRecycled reports whether the record sits in the recycle bin
func (r *Record) IsRecycled() bool {
	return r.Status == StatusRecycle
}

// ValidCategory reports whether c is one of the known record categories
func ValidCategory(c string) bool {
	switch c {
	case CategoryPassword, CategoryBank, CategoryPersonal, CategoryCard, CategoryNote:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known record status
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusRecycle
}
