package util

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// SaltLength is the fixed length of the per-account derivation salt.
const SaltLength = 16

// PBKDF2Params configures PBKDF2-SHA256 key derivation. The params are
// persisted alongside the derived hash so the iteration count can be raised
// in a later schema revision without invalidating existing records.
type PBKDF2Params struct {
	Iterations int    `json:"iterations"`
	KeyLen     int    `json:"key_len"`
	Hash       string `json:"hash"`
}

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 100_000,
		KeyLen:     32,
		Hash:       "sha256",
	}
}

// DerivePBKDF2Key stretches a passphrase into key material. The passphrase
// is NFKD-normalized by the caller; this function only validates shape.
func DerivePBKDF2Key(passphrase string, salt []byte, params PBKDF2Params) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("invalid salt length: got %d, want %d", len(salt), SaltLength)
	}
	if params.KeyLen != 32 {
		return nil, fmt.Errorf("pbkdf2 key length must be 32 bytes")
	}
	if params.Hash != "sha256" {
		return nil, fmt.Errorf("unsupported pbkdf2 hash: %s", params.Hash)
	}
	if params.Iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be positive")
	}
	return pbkdf2.Key([]byte(passphrase), salt, params.Iterations, params.KeyLen, sha256.New), nil
}

// ComparePBKDF2Key derives a key from the passphrase and compares it against
// the expected value in constant time.
func ComparePBKDF2Key(passphrase string, salt []byte, params PBKDF2Params, expectedKey []byte) (bool, error) {
	key, err := DerivePBKDF2Key(passphrase, salt, params)
	if err != nil {
		return false, err
	}
	defer WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expectedKey) == 1, nil
}
