package sources

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenCredentialsRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))

	plaintext := []byte(`{"api_key":"sk-test"}`)
	sealed, credHash, err := SealCredentials(key, plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, sealed)

	sum := sha256.Sum256(plaintext)
	assert.Equal(t, hex.EncodeToString(sum[:]), credHash)

	opened, err := OpenCredentials(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenCredentialsWrongKeyFails(t *testing.T) {
	var key, wrongKey [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(wrongKey[:], []byte("fedcba9876543210fedcba9876543210"))

	sealed, _, err := SealCredentials(key, []byte("secret"))
	require.NoError(t, err)

	_, err = OpenCredentials(wrongKey, sealed)
	assert.Error(t, err)
}

func TestOpenCredentialsTamperedCiphertextFails(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))

	sealed, _, err := SealCredentials(key, []byte("secret"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = OpenCredentials(key, sealed)
	assert.Error(t, err)
}

func TestOpenCredentialsTooShort(t *testing.T) {
	var key [32]byte
	_, err := OpenCredentials(key, []byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestSealCredentialsNoncesDiffer(t *testing.T) {
	var key [32]byte
	copy(key[:], []byte("0123456789abcdef0123456789abcdef"))

	a, _, err := SealCredentials(key, []byte("secret"))
	require.NoError(t, err)
	b, _, err := SealCredentials(key, []byte("secret"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each seal must use a fresh nonce")
}
