package cryptoutils

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := randomKey(t)

	ciphertext, err := Encrypt("BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQt", key)
	require.NoError(t, err)
	assert.NotEqual(t, "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQt", ciphertext)

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQt", plaintext)
}

func TestEncrypt_EmptyPlaintextPassesThrough(t *testing.T) {
	out, err := Encrypt("", randomKey(t))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncrypt_RejectsShortKey(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err := Encrypt("secret", short)
	assert.Error(t, err)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	ciphertext, err := Encrypt("secret", randomKey(t))
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, randomKey(t))
	assert.Error(t, err)
}
