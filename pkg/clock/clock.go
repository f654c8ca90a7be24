// Package clock abstracts time for components that arm timers, so tests can
// drive debounce windows, stale-tool expiry, and sweep ticks deterministically.
package clock

import "time"

// Clock provides the time operations the daemon uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc arms a one-shot timer that calls fn after d.
	AfterFunc(d time.Duration, fn func()) Timer

	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was still armed.
	Stop() bool

	// Reset re-arms the timer for a new duration.
	Reset(d time.Duration) bool
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{time.AfterFunc(d, fn)}
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{time.NewTicker(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (st systemTimer) Stop() bool                  { return st.t.Stop() }
func (st systemTimer) Reset(d time.Duration) bool  { return st.t.Reset(d) }

type systemTicker struct {
	t *time.Ticker
}

func (st *systemTicker) C() <-chan time.Time { return st.t.C }
func (st *systemTicker) Stop()               { st.t.Stop() }
