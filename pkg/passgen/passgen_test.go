package passgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Defaults(t *testing.T) {
	pw, err := Generate(Defaults())
	require.NoError(t, err)
	assert.Len(t, pw, DefaultLength)
	assert.False(t, strings.ContainsAny(pw, numbers+symbols))
}

func TestGenerate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"too short", Options{Length: 3, Lowercase: true}, ErrInvalidLength},
		{"too long", Options{Length: 129, Lowercase: true}, ErrInvalidLength},
		{"no pools", Options{Length: 16}, ErrNoPool},
		{"strict at minimum length", Options{Length: 4, Lowercase: true, Uppercase: true, Numbers: true, Symbols: true, Strict: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.opts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerate_OnlyEnabledPools(t *testing.T) {
	pw, err := Generate(Options{Length: 64, Numbers: true})
	require.NoError(t, err)
	assert.Equal(t, "", strings.Trim(pw, numbers))
}

func TestGenerate_Strict(t *testing.T) {
	opts := Options{Length: 4, Lowercase: true, Uppercase: true, Numbers: true, Symbols: true, Strict: true}
	for i := 0; i < 50; i++ {
		pw, err := Generate(opts)
		require.NoError(t, err)
		assert.True(t, strings.ContainsAny(pw, lowercase), pw)
		assert.True(t, strings.ContainsAny(pw, uppercase), pw)
		assert.True(t, strings.ContainsAny(pw, numbers), pw)
		assert.True(t, strings.ContainsAny(pw, symbols), pw)
	}
}

func TestGenerate_ExcludeSimilar(t *testing.T) {
	opts := Options{Length: MaxLength, Lowercase: true, Uppercase: true, Numbers: true, Symbols: true, ExcludeSimilarCharacters: true}
	for i := 0; i < 20; i++ {
		pw, err := Generate(opts)
		require.NoError(t, err)
		assert.False(t, strings.ContainsAny(pw, similar), pw)
	}
}
