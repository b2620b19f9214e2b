package auth

import (
	"log/slog"
	"time"

	"github.com/jmcleod/latchkey/crypto"
)

const (
	// DefaultIdleTimeout is how long a session survives without activity.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultBackgroundTimeout is how long a session survives after the
	// application loses foreground visibility.
	DefaultBackgroundTimeout = 5 * time.Minute
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithScheduler sets the delayed-task scheduler used for expiry timers.
// Defaults to a time.AfterFunc-backed scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithBiometric sets the platform authenticator adapter. Without one,
// biometric operations fail with ErrBiometricUnavailable.
func WithBiometric(b Biometric) Option {
	return func(m *Manager) { m.biometric = b }
}

// WithLogger sets the structured logger. If not set, a JSON logger writing
// to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// WithAttemptPolicy overrides the lockout policy constants.
func WithAttemptPolicy(p AttemptPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithKDFParams overrides the key-derivation parameters used for new
// records. Existing records keep the params they were created with.
func WithKDFParams(p crypto.KDFParams) Option {
	return func(m *Manager) { m.kdfParams = p }
}

// WithIdleTimeout overrides the idle expiry duration.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithBackgroundTimeout overrides the background expiry duration.
func WithBackgroundTimeout(d time.Duration) Option {
	return func(m *Manager) { m.backgroundTimeout = d }
}
