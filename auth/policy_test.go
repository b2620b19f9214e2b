package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptPolicy_CheckLockout(t *testing.T) {
	p := DefaultAttemptPolicy()
	now := time.Now()

	rec := &Record{}
	_, locked := p.CheckLockout(rec, now)
	assert.False(t, locked)

	until := now.Add(30 * time.Second)
	rec.LockoutUntil = &until

	remaining, locked := p.CheckLockout(rec, now)
	assert.True(t, locked)
	assert.Equal(t, 30*time.Second, remaining)

	// One millisecond before the deadline is still refused.
	_, locked = p.CheckLockout(rec, until.Add(-time.Millisecond))
	assert.True(t, locked)

	// At and after the deadline verification proceeds.
	_, locked = p.CheckLockout(rec, until)
	assert.False(t, locked)
	_, locked = p.CheckLockout(rec, until.Add(time.Millisecond))
	assert.False(t, locked)
}

func TestAttemptPolicy_RecordFailure(t *testing.T) {
	p := DefaultAttemptPolicy()
	now := time.Now()
	rec := &Record{}

	for i := 1; i < p.MaxAttempts; i++ {
		outcome := p.RecordFailure(rec, now)
		require.Nil(t, outcome.LockedUntil)
		assert.Equal(t, p.MaxAttempts-i, outcome.AttemptsRemaining)
		assert.Equal(t, i, rec.FailedAttempts)
	}

	// The fifth failure activates the lockout and resets the counter.
	outcome := p.RecordFailure(rec, now)
	require.NotNil(t, outcome.LockedUntil)
	assert.Equal(t, now.Add(p.LockoutDuration), *outcome.LockedUntil)
	assert.Equal(t, 0, rec.FailedAttempts)
	require.NotNil(t, rec.LockoutUntil)
	assert.Equal(t, now.Add(p.LockoutDuration), *rec.LockoutUntil)
}

func TestAttemptPolicy_RecordSuccess(t *testing.T) {
	p := DefaultAttemptPolicy()
	now := time.Now()
	until := now.Add(time.Minute)
	rec := &Record{FailedAttempts: 3, LockoutUntil: &until}

	p.RecordSuccess(rec)
	assert.Equal(t, 0, rec.FailedAttempts)
	assert.Nil(t, rec.LockoutUntil)
}

func TestAttemptPolicy_LockoutExpiryDoesNotResetCounter(t *testing.T) {
	p := DefaultAttemptPolicy()
	now := time.Now()
	rec := &Record{}

	// Three failures, then the window passes without any attempt. The
	// counter stays at three; only the next attempt's outcome resets it.
	for i := 0; i < 3; i++ {
		p.RecordFailure(rec, now)
	}
	later := now.Add(time.Hour)
	_, locked := p.CheckLockout(rec, later)
	assert.False(t, locked)
	assert.Equal(t, 3, rec.FailedAttempts)

	outcome := p.RecordFailure(rec, later)
	assert.Equal(t, 1, outcome.AttemptsRemaining)
}
