package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewVaultRejectsBadKeys(t *testing.T) {
	_, err := NewVault("not-hex")
	assert.Error(t, err)

	_, err = NewVault("abcd")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := NewVault(testKey)
	require.NoError(t, err)

	ct, iv, tag, err := v.Encrypt("1//0refresh-token-value")
	require.NoError(t, err)

	plain, err := v.Decrypt(ct, iv, tag)
	require.NoError(t, err)
	assert.Equal(t, "1//0refresh-token-value", plain)
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	v, err := NewVault(testKey)
	require.NoError(t, err)

	_, iv1, _, err := v.Encrypt("same input")
	require.NoError(t, err)
	_, iv2, _, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
}

func TestDecryptFailsOnTampering(t *testing.T) {
	v, err := NewVault(testKey)
	require.NoError(t, err)

	ct, iv, tag, err := v.Encrypt("secret")
	require.NoError(t, err)

	_, err = v.Decrypt(flipByte(t, ct), iv, tag)
	assert.ErrorIs(t, err, ErrCryptoAuth)

	_, err = v.Decrypt(ct, flipByte(t, iv), tag)
	assert.ErrorIs(t, err, ErrCryptoAuth)

	_, err = v.Decrypt(ct, iv, flipByte(t, tag))
	assert.ErrorIs(t, err, ErrCryptoAuth)
}

func TestDecryptFailsWithWrongKey(t *testing.T) {
	v1, err := NewVault(testKey)
	require.NoError(t, err)
	v2, err := NewVault(strings.Repeat("ff", 32))
	require.NoError(t, err)

	ct, iv, tag, err := v1.Encrypt("secret")
	require.NoError(t, err)

	_, err = v2.Decrypt(ct, iv, tag)
	assert.ErrorIs(t, err, ErrCryptoAuth)
}

func flipByte(t *testing.T, b64 string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	raw[0] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}
