package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	hash, err := HashPassword("Password123!")
	require.NoError(t, err)

	assert.NotEqual(t, "Password123!", hash)
	assert.NotContains(t, hash, "Password123!")
	assert.True(t, IsArgon2Hash(hash))
}

func TestHashPasswordSaltsEveryHash(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Password123!")
	require.NoError(t, err)

	ok, err := VerifyPassword("Password123!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("password123!", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old-secret"), 10)
	require.NoError(t, err)

	ok, err := VerifyPassword("old-secret", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, NeedsRehash(string(legacy)))

	ok, err = VerifyPassword("wrong", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	_, err := VerifyPassword("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("x", "$argon2id$v=19$m=1,t=1,p=1$!!!$!!!")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
