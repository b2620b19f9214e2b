// Package auth implements the credential and session security core: slow
// password verification, password-derived encryption of the stored secret,
// failed-attempt lockout, and multi-trigger session expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/jmcleod/latchkey/crypto"
	"github.com/jmcleod/latchkey/internal/util"
	"github.com/jmcleod/latchkey/storage"
)

// ErrInvalidInput indicates a malformed password or salt at the call
// boundary.
var ErrInvalidInput = crypto.ErrInvalidInput

// State describes the lifecycle position of the Manager.
type State int

const (
	// StateUninitialized means no credential record exists.
	StateUninitialized State = iota
	// StateLocked means a record exists but no session is active.
	StateLocked
	// StateAuthenticated means a session is active.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLocked:
		return "locked"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of the Manager's externally visible state.
type Status struct {
	State            State
	SecretLocked     bool
	SecretAvailable  bool
	HasSecret        bool
	BiometricEnabled bool
	ExpiresAt        time.Time
	DefaultTarget    float64
}

// Manager owns the single credential record and the active session. It is
// constructed once by the composition root and passed by reference; there
// are no package-level singletons. All operations are serialized by an
// internal mutex: the record is owned by exactly one operation at a time.
type Manager struct {
	mu        sync.Mutex
	store     storage.Store
	clock     Clock
	scheduler Scheduler
	biometric Biometric
	log       *slog.Logger

	policy    AttemptPolicy
	kdfParams crypto.KDFParams

	idleTimeout       time.Duration
	backgroundTimeout time.Duration

	sess *session
}

// NewManager creates a Manager over the given credential store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:             store,
		clock:             SystemClock(),
		scheduler:         TimerScheduler(),
		policy:            DefaultAttemptPolicy(),
		kdfParams:         crypto.DefaultKDFParams(),
		idleTimeout:       DefaultIdleTimeout,
		backgroundTimeout: DefaultBackgroundTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return m
}

// Setup creates the credential record and starts the first session. Fails
// with ErrAlreadyInitialized if a record already exists; there is exactly
// one account and no way to re-run setup short of an explicit wipe.
func (m *Manager) Setup(ctx context.Context, password string, defaultTarget float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.store.Load(ctx)
	switch {
	case err == nil:
		return ErrAlreadyInitialized
	case errors.Is(err, storage.ErrNotFound):
	default:
		return errors.Join(ErrStorage, err)
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	hash, err := crypto.DeriveKey(password, salt, m.kdfParams, crypto.PurposeVerify)
	if err != nil {
		return err
	}

	rec := &Record{
		PasswordHash:  hash,
		Salt:          salt,
		KDFParams:     m.kdfParams,
		CreatedAt:     m.clock.Now(),
		DefaultTarget: defaultTarget,
	}
	if err := m.persistLocked(ctx, rec); err != nil {
		return err
	}

	m.startSessionLocked(memguard.NewBufferFromBytes([]byte(password)), nil, false)
	m.log.Info("account created")
	return nil
}

// Login verifies the password and starts a session. The lockout check runs
// before key derivation; the policy outcome is persisted before the caller
// learns it. If the stored secret fails to decrypt after a correct
// password, the failure is logged and the session proceeds without the
// secret: a corrupt secret must not lock the user out of their own data.
func (m *Manager) Login(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	if err := m.verifyLocked(ctx, rec, password); err != nil {
		return err
	}

	var secret *memguard.LockedBuffer
	if rec.HasSecret() {
		plaintext, derr := m.decryptSecret(rec, password)
		if derr != nil {
			m.log.Warn("stored secret failed to decrypt, continuing without it", "error", derr)
		} else {
			secret = memguard.NewBufferFromBytes(plaintext)
		}
	}

	m.lockSessionLocked()
	m.startSessionLocked(memguard.NewBufferFromBytes([]byte(password)), secret, false)
	m.log.Info("login succeeded")
	return nil
}

// LoginWithBiometric starts a session gated by the platform authenticator.
// The secret stays locked: its encryption key is password-derived, never
// biometric-derived, so biometric unlock grants UI access only.
func (m *Manager) LoginWithBiometric(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	if m.biometric == nil || !rec.BiometricEnabled || len(rec.BiometricCredentialID) == 0 {
		return ErrBiometricUnavailable
	}

	ok, err := m.biometric.Authenticate(ctx, rec.BiometricCredentialID)
	if err != nil {
		return fmt.Errorf("biometric authentication: %w", err)
	}
	if !ok {
		return ErrBiometricRejected
	}

	m.lockSessionLocked()
	m.startSessionLocked(nil, nil, true)
	m.log.Info("biometric login succeeded, secret remains locked until password entry")
	return nil
}

// UnlockSecret verifies the password exactly as Login does, including the
// lockout check and attempt tracking, then decrypts the secret into memory
// without restarting the session.
func (m *Manager) UnlockSecret(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNotAuthenticated
	}
	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	if err := m.verifyLocked(ctx, rec, password); err != nil {
		return err
	}

	if m.sess.password != nil {
		m.sess.password.Destroy()
	}
	m.sess.password = memguard.NewBufferFromBytes([]byte(password))
	m.sess.secretLocked = false

	if rec.HasSecret() {
		plaintext, derr := m.decryptSecret(rec, password)
		if derr != nil {
			return derr
		}
		if m.sess.secret != nil {
			m.sess.secret.Destroy()
		}
		m.sess.secret = memguard.NewBufferFromBytes(plaintext)
	}
	return nil
}

// SaveSecret encrypts the plaintext under the password-derived key held by
// the current session and persists the updated record. A fresh nonce is
// generated for every save.
func (m *Manager) SaveSecret(ctx context.Context, plaintext []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNotAuthenticated
	}
	if m.sess.password == nil {
		return ErrPasswordUnavailable
	}
	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}

	key, err := crypto.DeriveKey(string(m.sess.password.Bytes()), rec.Salt, rec.KDFParams, crypto.PurposeEncrypt)
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	ciphertext, nonce, err := crypto.EncryptSecret(plaintext, key)
	if err != nil {
		return err
	}
	rec.EncryptedSecret = ciphertext
	rec.SecretNonce = nonce
	if err := m.persistLocked(ctx, rec); err != nil {
		return err
	}

	if m.sess.secret != nil {
		m.sess.secret.Destroy()
	}
	m.sess.secret = memguard.NewBufferFromBytes(util.CopyBytes(plaintext))
	m.sess.secretLocked = false
	m.log.Info("secret updated")
	return nil
}

// Secret returns a copy of the decrypted secret. The caller owns the copy
// and should wipe it when done.
func (m *Manager) Secret() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return nil, ErrNotAuthenticated
	}
	if m.sess.secretLocked {
		return nil, ErrSecretLocked
	}
	if m.sess.secret == nil {
		return nil, ErrNoSecret
	}
	return util.CopyBytes(m.sess.secret.Bytes()), nil
}

// EnableBiometric registers this account with the platform authenticator
// and persists the returned credential reference.
func (m *Manager) EnableBiometric(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNotAuthenticated
	}
	if m.biometric == nil || !m.biometric.Available(ctx) {
		return ErrBiometricUnavailable
	}
	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}

	handle := uuid.New()
	credentialID, err := m.biometric.Register(ctx, handle[:])
	if err != nil {
		return fmt.Errorf("biometric registration: %w", err)
	}
	rec.BiometricEnabled = true
	rec.BiometricCredentialID = credentialID
	if err := m.persistLocked(ctx, rec); err != nil {
		return err
	}
	m.log.Info("biometric unlock enabled")
	return nil
}

// BiometricCredential returns the opaque stored credential reference for
// the platform adapter to drive its authentication ceremony. It carries no
// key material and is available before login.
func (m *Manager) BiometricCredential(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !rec.BiometricEnabled || len(rec.BiometricCredentialID) == 0 {
		return nil, ErrBiometricUnavailable
	}
	return util.CopyBytes(rec.BiometricCredentialID), nil
}

// DisableBiometric removes the biometric credential reference.
func (m *Manager) DisableBiometric(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNotAuthenticated
	}
	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	rec.BiometricEnabled = false
	rec.BiometricCredentialID = nil
	if err := m.persistLocked(ctx, rec); err != nil {
		return err
	}
	m.log.Info("biometric unlock disabled")
	return nil
}

// SetDefaultTarget updates the stored configuration value. It has no
// security implications but lives on the credential record.
func (m *Manager) SetDefaultTarget(ctx context.Context, target float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return ErrNotAuthenticated
	}
	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	rec.DefaultTarget = target
	return m.persistLocked(ctx, rec)
}

// Lock invalidates the session, cancelling its expiry timers and wiping the
// in-memory secret and password. Idempotent.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockSessionLocked()
}

// Wipe verifies the password (the lockout applies here too) and then
// deletes all persisted state. There is no recovery path for a forgotten
// password; losing it is equivalent to losing the secret.
func (m *Manager) Wipe(ctx context.Context, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	if err := m.verifyLocked(ctx, rec, password); err != nil {
		return err
	}
	if err := m.store.Clear(ctx); err != nil {
		return errors.Join(ErrStorage, err)
	}
	m.lockSessionLocked()
	m.log.Info("all persisted state wiped")
	return nil
}

// Touch is the user-activity signal. It atomically cancels and reschedules
// the idle timer and pushes the session's absolute expiry forward.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return
	}
	m.sess.expiresAt = m.clock.Now().Add(m.idleTimeout)
	m.scheduleIdleLocked(m.sess)
}

// EnterBackground signals that the application lost foreground visibility.
// A shorter background timer starts; if it fires before the application
// returns to the foreground, the session locks.
func (m *Manager) EnterBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil {
		return
	}
	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	s.bgGen++
	gen := s.bgGen
	s.cancelBackground = m.scheduler.Schedule(m.backgroundTimeout, func() {
		m.expireBackground(s, gen)
	})
}

// EnterForeground cancels the background timer and immediately re-checks
// the absolute expiry against the wall clock: a suspended process may have
// slept past the deadline without the idle timer ever firing.
func (m *Manager) EnterForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil {
		return
	}
	if s.cancelBackground != nil {
		s.cancelBackground()
		s.cancelBackground = nil
	}
	s.bgGen++
	if !m.clock.Now().Before(s.expiresAt) {
		m.lockSessionLocked()
		m.log.Info("session expired while backgrounded")
	}
}

// Status returns a snapshot of the current state.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadLocked(ctx)
	if errors.Is(err, ErrNotInitialized) {
		return Status{State: StateUninitialized}, nil
	}
	if err != nil {
		return Status{}, err
	}

	st := Status{
		State:            StateLocked,
		HasSecret:        rec.HasSecret(),
		BiometricEnabled: rec.BiometricEnabled,
		DefaultTarget:    rec.DefaultTarget,
	}
	if m.sess != nil {
		st.State = StateAuthenticated
		st.SecretLocked = m.sess.secretLocked
		st.SecretAvailable = m.sess.secret != nil
		st.ExpiresAt = m.sess.expiresAt
	}
	return st, nil
}

// loadLocked reads and decodes the credential record. Callers must hold mu.
func (m *Manager) loadLocked(ctx context.Context) (*Record, error) {
	data, err := m.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return decodeRecord(data)
}

// persistLocked encodes and writes the credential record. Callers must hold mu.
func (m *Manager) persistLocked(ctx context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, data); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// verifyLocked runs the full verification sequence: lockout check first
// (never deriving a key while locked), then the slow derivation and
// constant-time compare, then the policy outcome, which is persisted
// before the caller learns it so a crash cannot leave lockout state
// unrecorded.
func (m *Manager) verifyLocked(ctx context.Context, rec *Record, password string) error {
	now := m.clock.Now()
	if remaining, locked := m.policy.CheckLockout(rec, now); locked {
		return &LockoutError{Remaining: remaining}
	}

	ok, err := crypto.VerifyPassphrase(password, rec.Salt, rec.KDFParams, rec.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		outcome := m.policy.RecordFailure(rec, now)
		if err := m.persistLocked(ctx, rec); err != nil {
			return err
		}
		if outcome.LockedUntil != nil {
			m.log.Warn("lockout activated", "until", *outcome.LockedUntil)
			return &LockoutError{Remaining: outcome.LockedUntil.Sub(now)}
		}
		return &VerificationError{AttemptsRemaining: outcome.AttemptsRemaining}
	}

	m.policy.RecordSuccess(rec)
	return m.persistLocked(ctx, rec)
}

func (m *Manager) decryptSecret(rec *Record, password string) ([]byte, error) {
	key, err := crypto.DeriveKey(password, rec.Salt, rec.KDFParams, crypto.PurposeEncrypt)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)
	return crypto.DecryptSecret(rec.EncryptedSecret, rec.SecretNonce, key)
}

// startSessionLocked installs a new session and arms its idle timer.
// Callers must hold mu. Ownership of the buffers passes to the session.
func (m *Manager) startSessionLocked(password, secret *memguard.LockedBuffer, secretLocked bool) {
	s := &session{
		password:     password,
		secret:       secret,
		secretLocked: secretLocked,
		expiresAt:    m.clock.Now().Add(m.idleTimeout),
	}
	m.sess = s
	m.scheduleIdleLocked(s)
}

// scheduleIdleLocked cancels any pending idle timer for the session and
// arms a new one. The generation counter guards against a stale callback
// that was already in flight when the reset happened.
func (m *Manager) scheduleIdleLocked(s *session) {
	if s.cancelIdle != nil {
		s.cancelIdle()
	}
	s.idleGen++
	gen := s.idleGen
	s.cancelIdle = m.scheduler.Schedule(m.idleTimeout, func() {
		m.expireIdle(s, gen)
	})
}

func (m *Manager) expireIdle(s *session, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != s || s.idleGen != gen {
		return
	}
	m.lockSessionLocked()
	m.log.Info("session locked by idle timeout")
}

func (m *Manager) expireBackground(s *session, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != s || s.bgGen != gen {
		return
	}
	m.lockSessionLocked()
	m.log.Info("session locked by background timeout")
}

// lockSessionLocked tears down the active session, if any. Timers are
// cancelled before secret material is wiped. Callers must hold mu.
func (m *Manager) lockSessionLocked() {
	if m.sess == nil {
		return
	}
	s := m.sess
	m.sess = nil
	s.close()
}
