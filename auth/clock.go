package auth

import "time"

// Clock supplies the current time. Injectable so lockout and expiry logic
// can be tested against a fixed timeline.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// CancelFunc cancels a scheduled task. Calling it after the task has fired,
// or more than once, is harmless.
type CancelFunc func()

// Scheduler runs a function after a delay. The production implementation
// uses time.AfterFunc; tests substitute a virtual-time scheduler so expiry
// behavior can be driven deterministically.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

func (timerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// TimerScheduler returns a Scheduler backed by time.AfterFunc.
func TimerScheduler() Scheduler { return timerScheduler{} }
