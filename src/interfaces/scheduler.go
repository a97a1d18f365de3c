package interfaces

import "time"

// -----------------------------------------------------------------------------
// ITimer is a handle to one pending callback.
// -----------------------------------------------------------------------------

type ITimer interface {
	// Stop cancels the callback. Stopping twice or after it fired is harmless.
	Stop()
}

// -----------------------------------------------------------------------------
// IScheduler runs callbacks later on the caller's own event loop.
// -----------------------------------------------------------------------------

type IScheduler interface {
	// -----------------------------------------------------------------------------
	// After runs fn once after d.
	After(d time.Duration, fn func()) ITimer

	// -----------------------------------------------------------------------------
	// Every runs fn repeatedly every d until the timer is stopped.
	Every(d time.Duration, fn func()) ITimer
}
