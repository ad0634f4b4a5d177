// Package passgen builds random passwords from configurable character pools.
package passgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	MinLength     = 4
	MaxLength     = 128
	DefaultLength = 16
)

const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()+_-=}{[]|:;\"/?.><,`~"
	similar   = "ilLI|`oO0"
)

var (
	ErrInvalidLength = fmt.Errorf("length must be between %d and %d", MinLength, MaxLength)
	ErrNoPool        = errors.New("at least one character set must be enabled")
)

// Options selects the character pools and rules used by Generate
type Options struct {
	Length                   int
	Numbers                  bool
	Symbols                  bool
	Lowercase                bool
	Uppercase                bool
	ExcludeSimilarCharacters bool
	// Strict requires at least one character from every enabled pool.
	// MinLength covers all four pools.
	Strict bool
}

// Defaults mirrors the common generator defaults: letters only, 16 characters
func Defaults() Options {
	return Options{Length: DefaultLength, Lowercase: true, Uppercase: true}
}

func (o Options) pools() []string {
	var pools []string
	add := func(enabled bool, set string) {
		if !enabled {
			return
		}
		if o.ExcludeSimilarCharacters {
			set = strings.Map(func(r rune) rune {
				if strings.ContainsRune(similar, r) {
					return -1
				}
				return r
			}, set)
		}
		pools = append(pools, set)
	}

	add(o.Lowercase, lowercase)
	add(o.Uppercase, uppercase)
	add(o.Numbers, numbers)
	add(o.Symbols, symbols)
	return pools
}

// Generate returns a password built with crypto/rand
func Generate(o Options) (string, error) {
	if o.Length < MinLength || o.Length > MaxLength {
		return "", ErrInvalidLength
	}

	pools := o.pools()
	if len(pools) == 0 {
		return "", ErrNoPool
	}

	all := strings.Join(pools, "")
	out := make([]byte, 0, o.Length)

	if o.Strict {
		for _, pool := range pools {
			c, err := pick(pool)
			if err != nil {
				return "", err
			}
			out = append(out, c)
		}
	}

	for len(out) < o.Length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return int(v.Int64()), nil
}

func pick(set string) (byte, error) {
	i, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// Fisher-Yates
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
