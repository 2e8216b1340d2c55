package timer

import (
	"fmt"
	"time"
)

// Kind determines what happens to a timer after it fired.
type Kind int

const (
	OneShot Kind = iota + 1
	Once
	Repeat
)

func (k Kind) String() string {
	switch k {
	case OneShot:
		return "oneshot"
	case Once:
		return "once"
	case Repeat:
		return "repeat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Callback is invoked when a timer expires.
type Callback interface {
	Fire(t *Timer, now time.Time)
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(t *Timer, now time.Time)

func (f CallbackFunc) Fire(t *Timer, now time.Time) {
	f(t, now)
}

// Clock returns the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Timer is a deadline owned by whichever component created it. A Registry only holds a
// membership reference; removing a timer from a registry never invalidates it.
type Timer struct {
	id               uint64
	timeout          time.Duration
	kind             Kind
	initialSuspended bool
	running          bool
	started          time.Time
	callback         Callback

	// member is the registry the timer is currently added to.
	member *Registry
}

// ID is unique within the registry that created the timer. It is meant for diagnostics.
func (t *Timer) ID() uint64 { return t.id }

func (t *Timer) Timeout() time.Duration { return t.timeout }

func (t *Timer) Kind() Kind { return t.kind }

// Running reports whether the timer takes part in deadline computation and firing.
func (t *Timer) Running() bool { return t.running }

// StartedAt is the instant the timer's clock was last (re)started.
func (t *Timer) StartedAt() time.Time { return t.started }

// Member reports whether the timer is currently added to a registry.
func (t *Timer) Member() bool { return t.member != nil }

func (t *Timer) String() string {
	status := "suspended"
	if t.running {
		status = "running"
	}
	return fmt.Sprintf("timer %d (%s, %s, %s)", t.id, t.kind, t.timeout, status)
}

// remaining is the time left until expiry, which may be negative.
func (t *Timer) remaining(now time.Time) time.Duration {
	return t.timeout - now.Sub(t.started)
}

// due reports whether the timer's elapsed time exceeds its timeout.
func (t *Timer) due(now time.Time) bool {
	return t.running && now.Sub(t.started) > t.timeout
}

// start restarts the clock and applies the initial suspension rule.
func (t *Timer) start(now time.Time) {
	t.started = now
	t.running = !t.initialSuspended
}
