package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	first, err := h.Hash("admin123")
	require.NoError(t, err)
	second, err := h.Hash("admin123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salted hashes of the same secret must differ")
	assert.NotContains(t, first, "admin123")
	assert.True(t, h.Verify("admin123", first))
	assert.True(t, h.Verify("admin123", second))
}

func TestBcrypt_VerifyRejects(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	hash, err := h.Hash("admin123")
	require.NoError(t, err)

	tests := []struct {
		name  string
		plain string
		hash  string
	}{
		{name: "wrong password", plain: "wrongpassword", hash: hash},
		{name: "prefix of password", plain: "admin12", hash: hash},
		{name: "trailing space", plain: "admin123 ", hash: hash},
		{name: "empty hash", plain: "admin123", hash: ""},
		{name: "malformed hash", plain: "admin123", hash: "not-a-bcrypt-hash"},
		{name: "truncated hash", plain: "admin123", hash: hash[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, h.Verify(tt.plain, tt.hash))
		})
	}
}

func TestBcrypt_HashEmpty(t *testing.T) {
	_, err := NewBcrypt(bcrypt.MinCost).Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestBcrypt_HashLengthLimit(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	longest := strings.Repeat("a", MaxLength)
	hash, err := h.Hash(longest)
	require.NoError(t, err)
	assert.True(t, h.Verify(longest, hash))

	_, err = h.Hash(longest + "a")
	require.ErrorIs(t, err, ErrTooLong)

	// multi-byte runes count by bytes
	_, err = h.Hash(strings.Repeat("é", MaxLength/2+1))
	require.ErrorIs(t, err, ErrTooLong)
}

func TestNewBcrypt_CostBounds(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(0).Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(bcrypt.MaxCost+1).Cost())
	assert.Equal(t, 12, NewBcrypt(12).Cost())

	h := NewBcrypt(bcrypt.MinCost)
	hash, err := h.Hash("guest123")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
