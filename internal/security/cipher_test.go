package security

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretCipher_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewSecretCipher(key)
	require.NoError(t, err)

	sealed, err := c.Seal("bind-p@ss")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "bind-p@ss")

	other, err := c.Seal("bind-p@ss")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "fresh nonce per seal")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "bind-p@ss", plain)
}

func TestSecretCipher_WrongKey(t *testing.T) {
	a, err := NewSecretCipher(strings.Repeat("a", 32))
	require.NoError(t, err)
	b, err := NewSecretCipher(hex.EncodeToString([]byte(strings.Repeat("b", 16))))
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.ErrorContains(t, err, "failed to decrypt secret")
}

func TestSecretCipher_OpenRejectsGarbage(t *testing.T) {
	c, err := NewSecretCipher(strings.Repeat("k", 16))
	require.NoError(t, err)

	_, err = c.Open("plaintext")
	assert.ErrorIs(t, err, ErrNotSealed)
	_, err = c.Open("v1:!!!")
	assert.Error(t, err)
	_, err = c.Open("v1:AAAA")
	assert.ErrorContains(t, err, "truncated")
}

func TestNewSecretCipher_KeyValidation(t *testing.T) {
	_, err := NewSecretCipher("")
	assert.ErrorContains(t, err, SecretKeyEnv)
	_, err = NewSecretCipher("short")
	assert.ErrorContains(t, err, "invalid")
}
