package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 10 // matches hashes already issued to existing accounts
	MinPinLen   = 6
	MaxPinLen   = 64

	// maxBcryptInput is the longest input bcrypt accepts
	maxBcryptInput = 72
)

// Hasher performs one-way hashing of PINs and client-supplied digests
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given bcrypt work factor.
// Out-of-range costs fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the salted bcrypt digest of plaintext
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches digest. A malformed or empty
// digest never matches.
func (h *Hasher) Verify(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plaintext))
	return err == nil
}

// bcryptInput passes short inputs through unchanged and replaces longer ones
// with their hex SHA-256, so client digests of any size hash and verify the
// same way.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= maxBcryptInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(hex.EncodeToString(sum[:]))
}

var (
	ErrPinTooShort = errors.New("pin must have at least 6 characters")
	ErrPinTooLong  = errors.New("pin must have at most 64 characters")
)

// ValidatePin enforces the PIN length bounds
func ValidatePin(pin string) error {
	switch {
	case len(pin) < MinPinLen:
		return ErrPinTooShort
	case len(pin) > MaxPinLen:
		return ErrPinTooLong
	}
	return nil
}
