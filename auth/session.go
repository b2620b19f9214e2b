package auth

import (
	"time"

	"github.com/awnumar/memguard"
)

// session is the ephemeral authenticated state. The decrypted secret and
// the session password live only in locked buffers owned by the session;
// both are destroyed on every lock transition. Expiry timers are tied to
// the session instance and a generation counter, so a stale timer firing
// after a reset, a lock, or the start of a new session is a no-op.
type session struct {
	expiresAt time.Time

	// secretLocked is set for biometric logins: the UI is unlocked but the
	// secret stays encrypted until the password is entered.
	secretLocked bool

	// password holds the session password for re-deriving the secret
	// encryption key. Nil for biometric-only sessions.
	password *memguard.LockedBuffer
	// secret holds the decrypted secret. Nil when no secret is stored or
	// it has not been unlocked yet.
	secret *memguard.LockedBuffer

	idleGen    uint64
	cancelIdle CancelFunc

	bgGen            uint64
	cancelBackground CancelFunc
}

// close cancels pending expiry timers and then destroys all secret
// material. Timer cancellation must happen first so a callback can never
// observe a half-cleared session.
func (s *session) close() {
	if s.cancelIdle != nil {
		s.cancelIdle()
		s.cancelIdle = nil
	}
	if s.cancelBackground != nil {
		s.cancelBackground()
		s.cancelBackground = nil
	}
	s.idleGen++
	s.bgGen++

	if s.password != nil {
		s.password.Destroy()
		s.password = nil
	}
	if s.secret != nil {
		s.secret.Destroy()
		s.secret = nil
	}
}
