package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", digest)
	assert.True(t, strings.HasPrefix(digest, "$2a$"))

	assert.True(t, h.Verify("123456", digest))
	assert.False(t, h.Verify("654321", digest))
}

func TestHasher_HashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("same-input")
	require.NoError(t, err)
	second, err := h.Hash("same-input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two hashes of the same input must differ")
	assert.True(t, h.Verify("same-input", first))
	assert.True(t, h.Verify("same-input", second))
}

func TestHasher_EmptyPlaintext(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("")
	assert.Error(t, err)
}

func TestHasher_VerifyRejectsBadDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("123456", ""))
	assert.False(t, h.Verify("123456", "not-a-bcrypt-hash"))
}

func TestHasher_LongDigests(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	// hex SHA-512 of a recovery phrase, as sent by clients
	long := strings.Repeat("ab12", 32)
	digest, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Verify(long, digest))
	assert.False(t, h.Verify(long[:127]+"c", digest))

	// inputs differing only after the 72nd byte stay distinct
	other := long[:100] + strings.Repeat("f", 28)
	assert.False(t, h.Verify(other, digest))
}

func TestHasher_ShortInputsUnchanged(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	input := strings.Repeat("x", 72)
	raw, err := bcrypt.GenerateFromPassword([]byte(input), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, h.Verify(input, string(raw)))
}

func TestNewHasher_CostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestValidatePin(t *testing.T) {
	tests := []struct {
		name    string
		pin     string
		wantErr error
	}{
		{name: "six digits", pin: "123456"},
		{name: "alphanumeric", pin: "abc123xyz"},
		{name: "longest allowed", pin: strings.Repeat("9", MaxPinLen)},
		{name: "too short", pin: "12345", wantErr: ErrPinTooShort},
		{name: "empty", pin: "", wantErr: ErrPinTooShort},
		{name: "too long", pin: strings.Repeat("9", 80), wantErr: ErrPinTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePin(tt.pin)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
