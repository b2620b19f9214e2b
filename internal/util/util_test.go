package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePBKDF2Key_Deterministic(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	params := DefaultPBKDF2Params()
	k1, err := DerivePBKDF2Key("hunter22", salt, params)
	require.NoError(t, err)
	k2, err := DerivePBKDF2Key("hunter22", salt, params)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDerivePBKDF2Key_DifferentSalts(t *testing.T) {
	salt1, err := NewSalt()
	require.NoError(t, err)
	salt2, err := NewSalt()
	require.NoError(t, err)

	params := DefaultPBKDF2Params()
	k1, err := DerivePBKDF2Key("hunter22", salt1, params)
	require.NoError(t, err)
	k2, err := DerivePBKDF2Key("hunter22", salt2, params)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestDerivePBKDF2Key_InvalidInput(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	params := DefaultPBKDF2Params()

	_, err = DerivePBKDF2Key("", salt, params)
	assert.Error(t, err)

	_, err = DerivePBKDF2Key("hunter22", []byte("short"), params)
	assert.Error(t, err)

	bad := params
	bad.KeyLen = 16
	_, err = DerivePBKDF2Key("hunter22", salt, bad)
	assert.Error(t, err)
}

func TestComparePBKDF2Key(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	params := DefaultPBKDF2Params()

	expected, err := DerivePBKDF2Key("hunter22", salt, params)
	require.NoError(t, err)

	ok, err := ComparePBKDF2Key("hunter22", salt, params, expected)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePBKDF2Key("hunter23", salt, params, expected)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncryptDecryptAES(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	require.NoError(t, err)

	plaintext := []byte("sk-abc123")
	ciphertext, nonce, err := EncryptAES(plaintext, key)
	require.NoError(t, err)
	assert.Len(t, nonce, GCMNonceSize)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := DecryptAES(ciphertext, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptAES_WrongKey(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	require.NoError(t, err)
	otherKey, err := RandomBytes(AESKeySize)
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptAES([]byte("secret"), key)
	require.NoError(t, err)

	_, err = DecryptAES(ciphertext, nonce, otherKey)
	assert.Error(t, err)
}

func TestEncryptAES_FreshNoncePerCall(t *testing.T) {
	key, err := RandomBytes(AESKeySize)
	require.NoError(t, err)

	_, n1, err := EncryptAES([]byte("secret"), key)
	require.NoError(t, err)
	_, n2, err := EncryptAES([]byte("secret"), key)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
}

func TestEncryptAES_InvalidKeySize(t *testing.T) {
	_, _, err := EncryptAES([]byte("secret"), []byte("too-short"))
	assert.Error(t, err)
}

func TestHKDF_PurposeSeparation(t *testing.T) {
	seed, err := RandomBytes(32)
	require.NoError(t, err)
	salt, err := NewSalt()
	require.NoError(t, err)

	k1, err := HKDF(seed, salt, []byte("purpose-a"))
	require.NoError(t, err)
	k2, err := HKDF(seed, salt, []byte("purpose-b"))
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, HKDFKeyLength)
}

func TestNormalize(t *testing.T) {
	// U+00E9 (precomposed) and U+0065 U+0301 (combining) must normalize
	// to the same representation.
	assert.Equal(t, Normalize("café"), Normalize("café"))
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
