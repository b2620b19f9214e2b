package crypto

import (
	"errors"

	"github.com/jmcleod/latchkey/internal/util"
)

// ErrAuthenticationFailure indicates the GCM tag did not verify. A wrong
// key and corrupted ciphertext are indistinguishable; callers must treat
// both identically and never attempt partial recovery.
var ErrAuthenticationFailure = errors.New("secret authentication failure")

// KeySize is the symmetric key size expected by EncryptSecret.
const KeySize = util.AESKeySize

// NonceSize is the GCM nonce size stored with each encrypted secret.
const NonceSize = util.GCMNonceSize

// EncryptSecret seals the plaintext under AES-256-GCM with a fresh random
// nonce. Every call produces a new nonce, so re-encrypting an updated
// secret under the same key never reuses one.
func EncryptSecret(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	return util.EncryptAES(plaintext, key)
}

// DecryptSecret opens a sealed secret. Tag mismatch is reported as
// ErrAuthenticationFailure.
func DecryptSecret(ciphertext, nonce, key []byte) ([]byte, error) {
	plaintext, err := util.DecryptAES(ciphertext, nonce, key)
	if err != nil {
		return nil, errors.Join(ErrAuthenticationFailure, err)
	}
	return plaintext, nil
}
