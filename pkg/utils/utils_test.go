package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := Encrypt([]byte("super-secret-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "super-secret-token")

	plaintext, err := Decrypt(encrypted, []byte(testKey))
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token", plaintext)

	// Fresh nonce every call.
	again, err := Encrypt([]byte("super-secret-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again)
}

func TestDecryptRejectsTamperedData(t *testing.T) {
	encrypted, err := Encrypt([]byte("payload"), []byte(testKey))
	require.NoError(t, err)

	_, err = Decrypt(encrypted, []byte("ffffffffffffffffffffffffffffffff"))
	assert.Error(t, err, "wrong key must not decrypt")

	_, err = Decrypt("c2hvcnQ=", []byte(testKey))
	assert.Error(t, err, "truncated ciphertext")
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(testKey, "42", "admin", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "socialcast", claims.Issuer)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := GenerateToken(testKey, "42", "editor", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken("another-secret", token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(testKey, "42", "editor", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(testKey, token)
	assert.Error(t, err)
}

func TestGenerateRandomKeyUnique(t *testing.T) {
	a, err := GenerateRandomKey(16)
	require.NoError(t, err)
	b, err := GenerateRandomKey(16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
