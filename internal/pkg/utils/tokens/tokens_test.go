package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	secret, ok := ParseToken("sk_user_abc123", "sk_user_")
	require.True(t, ok)
	assert.Equal(t, "abc123", secret)

	_, ok = ParseToken("sk_proj_abc123", "sk_user_")
	assert.False(t, ok)

	_, ok = ParseToken("", "sk_user_")
	assert.False(t, ok)
}

func TestHMAC256Hex(t *testing.T) {
	a := HMAC256Hex("pepper", "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HMAC256Hex("pepper", "secret"))
	assert.NotEqual(t, a, HMAC256Hex("pepper", "other"))
	assert.NotEqual(t, a, HMAC256Hex("other", "secret"))
}

func TestNewSecretHex(t *testing.T) {
	s1, err := NewSecretHex(32)
	require.NoError(t, err)
	assert.Len(t, s1, 64)

	s2, err := NewSecretHex(32)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
}
