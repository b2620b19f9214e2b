// Package crypto provides the password-derived key material and
// authenticated encryption used to protect the stored secret.
package crypto

import (
	"errors"

	"github.com/jmcleod/latchkey/internal/util"
)

// ErrInvalidInput indicates a malformed passphrase or salt. This is a
// programmer error at the call boundary, not a user-facing outcome.
var ErrInvalidInput = errors.New("invalid derivation input")

// KDFParams configures the slow key-derivation function. The params are
// persisted with the credential record so the iteration count can be raised
// across schema revisions.
type KDFParams = util.PBKDF2Params

// SaltLength is the fixed derivation salt length in bytes.
const SaltLength = util.SaltLength

// Purpose selects which key the derivation produces. Verification hashes
// and encryption keys are domain-separated so that the stored hash can
// never double as the secret's encryption key.
type Purpose string

const (
	PurposeVerify  Purpose = "verify"
	PurposeEncrypt Purpose = "encrypt"
)

var purposeInfo = map[Purpose][]byte{
	PurposeVerify:  []byte("latchkey:verify:v1"),
	PurposeEncrypt: []byte("latchkey:secret:v1"),
}

// DefaultKDFParams returns the PBKDF2-SHA256 parameters used for new
// accounts: 100,000 iterations, 32-byte output.
func DefaultKDFParams() KDFParams {
	return util.DefaultPBKDF2Params()
}

// NewSalt generates a fresh random derivation salt.
func NewSalt() ([]byte, error) {
	return util.NewSalt()
}

// DeriveKey stretches a passphrase into a purpose-bound 32-byte key.
// The passphrase is NFKD-normalized first, then run through PBKDF2-SHA256
// and expanded with HKDF under the purpose's info string. The same
// passphrase, salt, params, and purpose always yield the same key.
func DeriveKey(passphrase string, salt []byte, params KDFParams, purpose Purpose) ([]byte, error) {
	info, ok := purposeInfo[purpose]
	if !ok {
		return nil, ErrInvalidInput
	}
	seed, err := util.DerivePBKDF2Key(util.Normalize(passphrase), salt, params)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	defer util.WipeBytes(seed)

	return util.HKDF(seed, salt, info)
}

// VerifyPassphrase derives the verification key from the passphrase and
// compares it against the stored hash in constant time.
func VerifyPassphrase(passphrase string, salt []byte, params KDFParams, expectedHash []byte) (bool, error) {
	key, err := DeriveKey(passphrase, salt, params, PurposeVerify)
	if err != nil {
		return false, err
	}
	defer util.WipeBytes(key)
	return util.ConstantTimeEqual(key, expectedHash), nil
}
