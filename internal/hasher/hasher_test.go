package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	digest, err := h.Hash("Abc12345!")
	require.NoError(t, err)
	assert.NotEqual(t, "Abc12345!", digest)

	assert.True(t, h.Verify("Abc12345!", digest))
	assert.False(t, h.Verify("abc12345!", digest))
	assert.False(t, h.Verify("Abc12345!", "not-a-bcrypt-digest"))
}

func TestBcrypt_Salted(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestNewBcrypt_CostFallback(t *testing.T) {
	h := NewBcrypt(99).(*bcryptHasher)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)

	h = NewBcrypt(bcrypt.MinCost).(*bcryptHasher)
	assert.Equal(t, bcrypt.MinCost, h.cost)
}
