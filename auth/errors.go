package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotInitialized indicates no credential record exists yet.
	ErrNotInitialized = errors.New("not initialized")
	// ErrAlreadyInitialized indicates setup was called while a credential record exists.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrNotAuthenticated indicates the operation requires an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSecretLocked indicates the session was opened biometrically and the
	// secret has not been unlocked with the password yet.
	ErrSecretLocked = errors.New("secret locked")
	// ErrNoSecret indicates no secret has been saved.
	ErrNoSecret = errors.New("no secret stored")
	// ErrPasswordUnavailable indicates the session holds no password material
	// to re-derive the encryption key (biometric-only session).
	ErrPasswordUnavailable = errors.New("session password unavailable")
	// ErrBiometricUnavailable indicates no biometric credential is registered
	// or no authenticator is present.
	ErrBiometricUnavailable = errors.New("biometric unavailable")
	// ErrBiometricRejected indicates the platform authenticator refused the
	// authentication attempt.
	ErrBiometricRejected = errors.New("biometric authentication rejected")
	// ErrStorage wraps failures from the credential store. No partial-state
	// assumptions may be made by the caller.
	ErrStorage = errors.New("credential storage failure")
)

// VerificationError reports a wrong password while the account is not
// locked out.
type VerificationError struct {
	AttemptsRemaining int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %d attempts remaining", e.AttemptsRemaining)
}

// LockoutError reports that verification is refused until the lockout
// window passes. Key derivation is never run while locked.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("locked out: retry in %s", e.Remaining.Round(time.Second))
}
