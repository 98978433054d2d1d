package connection

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop cancels the call. It reports false if the call already ran or
	// was stopped.
	Stop() bool
}

// Scheduler runs deferred calls. Production code uses time.AfterFunc; tests
// inject a scheduler they fire by hand.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler returns the wall-clock scheduler.
func RealScheduler() Scheduler { return realScheduler{} }
