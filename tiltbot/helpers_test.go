package tiltbot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()
	hashed, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashed, "$argon2id$"))
	assert.NotContains(t, hashed, "hunter2")

	valid, err := VerifyPassword(hashed, "hunter2")
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = VerifyPassword(hashed, "hunter3")
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = VerifyPassword("not-a-hash", "hunter2")
	assert.Error(t, err)
}

func TestHashPasswordUnique(t *testing.T) {
	t.Parallel()
	first, err := HashPassword("same-password")
	require.NoError(t, err)
	second, err := HashPassword("same-password")
	require.NoError(t, err)

	// salted, so two hashes of the same password differ
	assert.NotEqual(t, first, second)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
	assert.Equal(t, "", truncate("", 5))
	assert.Equal(t, "héll", truncate("héllo", 4))
}

func TestGenerateRandomHexString(t *testing.T) {
	t.Parallel()
	s, err := generateRandomHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	other, err := generateRandomHexString(16)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestDerive64ByteKey(t *testing.T) {
	t.Parallel()
	key := derive64ByteKey("secret")
	assert.Len(t, key, 64)
	assert.Equal(t, key, derive64ByteKey("secret"))
	assert.NotEqual(t, key, derive64ByteKey("other"))
}
