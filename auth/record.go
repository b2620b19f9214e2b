package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmcleod/latchkey/crypto"
)

// recordVersion is the current credential record schema version.
// v1 predates biometric unlock and persisted KDF params.
const recordVersion = 2

// Record is the single persisted credential record. It is created once at
// setup and mutated only through the Manager; the only way to remove it is
// an explicit wipe.
type Record struct {
	Ver          int              `json:"ver"`
	PasswordHash []byte           `json:"password_hash"`
	Salt         []byte           `json:"salt"`
	KDFParams    crypto.KDFParams `json:"kdf_params"`

	// EncryptedSecret and SecretNonce are set together or absent together.
	EncryptedSecret []byte `json:"encrypted_secret,omitempty"`
	SecretNonce     []byte `json:"secret_nonce,omitempty"`

	BiometricEnabled      bool   `json:"biometric_enabled,omitempty"`
	BiometricCredentialID []byte `json:"biometric_credential_id,omitempty"`

	FailedAttempts int        `json:"failed_attempts"`
	LockoutUntil   *time.Time `json:"lockout_until,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	DefaultTarget float64   `json:"default_target"`
}

// HasSecret reports whether an encrypted secret is stored.
func (r *Record) HasSecret() bool {
	return len(r.EncryptedSecret) > 0
}

func (r *Record) validate() error {
	if len(r.PasswordHash) != crypto.KeySize {
		return fmt.Errorf("invalid password hash length: %d", len(r.PasswordHash))
	}
	if len(r.Salt) != crypto.SaltLength {
		return fmt.Errorf("invalid salt length: %d", len(r.Salt))
	}
	if (len(r.EncryptedSecret) > 0) != (len(r.SecretNonce) > 0) {
		return fmt.Errorf("inconsistent secret pair: ciphertext and nonce must be set together")
	}
	if r.BiometricEnabled && len(r.BiometricCredentialID) == 0 {
		return fmt.Errorf("biometric enabled without a credential reference")
	}
	if r.FailedAttempts < 0 {
		return fmt.Errorf("negative failed attempt count: %d", r.FailedAttempts)
	}
	return nil
}

func encodeRecord(r *Record) ([]byte, error) {
	r.Ver = recordVersion
	if err := r.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// decodeRecord parses a persisted record, applying schema migrations on
// load so callers always see the current version.
func decodeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding credential record: %w", err)
	}

	switch r.Ver {
	case 1:
		migrateRecordV1(&r)
	case recordVersion:
	default:
		return nil, fmt.Errorf("unsupported credential record version: %d", r.Ver)
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("corrupt credential record: %w", err)
	}
	return &r, nil
}

// migrateRecordV1 upgrades a v1 record in place. v1 records carry no KDF
// params (the v1 constants are assumed) and no biometric fields.
func migrateRecordV1(r *Record) {
	if r.KDFParams == (crypto.KDFParams{}) {
		r.KDFParams = crypto.DefaultKDFParams()
	}
	r.BiometricEnabled = false
	r.BiometricCredentialID = nil
	r.Ver = recordVersion
}
