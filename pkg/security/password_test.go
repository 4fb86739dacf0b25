package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("password")
	require.NoError(t, err)
	assert.True(t, IsHash(hash))
	assert.False(t, IsHash("password"))

	assert.NoError(t, h.Compare(hash, "password"))
	assert.Error(t, h.Compare(hash, "Password"))

	_, err = h.Hash("short")
	assert.Error(t, err)
}
