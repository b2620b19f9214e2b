package auth

import "time"

const (
	// DefaultMaxAttempts is the number of consecutive failed verifications
	// before a lockout is activated.
	DefaultMaxAttempts = 5
	// DefaultLockoutDuration is the length of the lockout window.
	DefaultLockoutDuration = 30 * time.Second
)

// AttemptPolicy tracks consecutive failed verifications on the credential
// record and computes lockout windows. It is a blunt deterrent against
// local brute-force guessing, not a network rate limiter; the lockout check
// always runs before key derivation so a locked-out caller learns nothing
// from timing.
type AttemptPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// DefaultAttemptPolicy returns the fixed production policy.
func DefaultAttemptPolicy() AttemptPolicy {
	return AttemptPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		LockoutDuration: DefaultLockoutDuration,
	}
}

// CheckLockout reports whether verification may proceed. When locked it
// returns the remaining lockout duration.
func (p AttemptPolicy) CheckLockout(r *Record, now time.Time) (remaining time.Duration, locked bool) {
	if r.LockoutUntil == nil || !r.LockoutUntil.After(now) {
		return 0, false
	}
	return r.LockoutUntil.Sub(now), true
}

// FailureOutcome reports the result of recording a failed verification:
// either the attempts remaining before lockout, or the lockout deadline
// that was just activated.
type FailureOutcome struct {
	AttemptsRemaining int
	LockedUntil       *time.Time
}

// RecordFailure increments the failure counter. When the counter reaches
// the threshold the lockout is activated and the counter resets to zero;
// lockout expiry alone never resets it.
func (p AttemptPolicy) RecordFailure(r *Record, now time.Time) FailureOutcome {
	r.FailedAttempts++
	if r.FailedAttempts >= p.MaxAttempts {
		until := now.Add(p.LockoutDuration)
		r.LockoutUntil = &until
		r.FailedAttempts = 0
		return FailureOutcome{LockedUntil: &until}
	}
	return FailureOutcome{AttemptsRemaining: p.MaxAttempts - r.FailedAttempts}
}

// RecordSuccess resets the failure counter and clears any lockout.
func (p AttemptPolicy) RecordSuccess(r *Record) {
	r.FailedAttempts = 0
	r.LockoutUntil = nil
}
