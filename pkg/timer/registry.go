package timer

import (
	"errors"
	"slices"
	"time"
)

var ErrForeignTimer = errors.New("timer belongs to another registry")

// Registry is an insertion-ordered collection of timers.
//
// A Registry is not safe for concurrent use. It is meant to be owned by one event loop.
type Registry struct {
	timers     []*Timer
	running    bool
	resolution time.Duration
	clock      Clock
	nextID     uint64
}

// New creates an empty, paused registry.
//
// A positive resolution caps the value returned by NextDeadline. This bounds the latency with
// which a timer armed while the owner is already sleeping is noticed.
func New(resolution time.Duration, clock Clock) *Registry {
	if clock == nil {
		clock = RealClock{}
	}
	if resolution < 0 {
		resolution = 0
	}
	return &Registry{
		resolution: resolution,
		clock:      clock,
	}
}

// NewTimer creates a timer that is not yet part of the registry. Its status is decided when it
// is added.
func (r *Registry) NewTimer(timeout time.Duration, kind Kind, initiallySuspended bool, cb Callback) *Timer {
	id := r.nextID
	r.nextID++
	return &Timer{
		id:               id,
		timeout:          timeout,
		kind:             kind,
		initialSuspended: initiallySuspended,
		callback:         cb,
	}
}

// Add inserts t. When the registry is running, t's clock starts immediately.
// Adding a timer that is already a member is a no-op.
func (r *Registry) Add(t *Timer) error {
	switch t.member {
	case r:
		return nil
	case nil:
	default:
		return ErrForeignTimer
	}

	t.member = r
	r.timers = append(r.timers, t)
	if r.running {
		t.start(r.clock.Now())
	} else {
		t.running = !t.initialSuspended
	}

	return nil
}

// Remove takes t out of the registry and suspends it. t stays usable and can be added again.
func (r *Registry) Remove(t *Timer) {
	if t.member != r {
		return
	}
	i := slices.Index(r.timers, t)
	if i >= 0 {
		r.timers = slices.Delete(r.timers, i, i+1)
	}
	t.member = nil
	t.running = false
}

// Len returns the number of member timers.
func (r *Registry) Len() int { return len(r.timers) }

// Running reports whether the registry is started.
func (r *Registry) Running() bool { return r.running }

// NextDeadline returns how long the caller may wait before the soonest running timer expires.
// ok is false when the registry is paused or no timer is running.
//
// The result is never negative and, with a resolution configured, never exceeds it.
func (r *Registry) NextDeadline(now time.Time) (d time.Duration, ok bool) {
	if !r.running {
		return 0, false
	}

	for _, t := range r.timers {
		if !t.running {
			continue
		}
		rem := t.remaining(now)
		if !ok || rem < d {
			d = rem
			ok = true
		}
	}

	if !ok {
		return 0, false
	}
	if d < 0 {
		d = 0
	}
	if r.resolution > 0 && d > r.resolution {
		d = r.resolution
	}

	return d, true
}

// FireDue invokes the callback of every running timer whose elapsed time exceeds its timeout and
// returns how many fired. ok is false when the registry is paused.
//
// The set of due timers is fixed before the first callback runs. Callbacks may add, remove or
// rearm timers and may stop the registry. A timer from the due set is skipped once it has been
// removed or suspended, or the registry was stopped. Timers added during the pass are considered
// on the next call.
func (r *Registry) FireDue(now time.Time) (fired int, ok bool) {
	if !r.running {
		return 0, false
	}

	var due []*Timer
	for _, t := range r.timers {
		if t.due(now) {
			due = append(due, t)
		}
	}

	for _, t := range due {
		if !r.running || t.member != r || !t.running {
			continue
		}

		if t.callback != nil {
			t.callback.Fire(t, now)
		}
		fired++

		switch t.kind {
		case Once:
			r.Remove(t)
		case OneShot:
			t.running = false
		case Repeat:
			t.started = now
		}
	}

	return fired, true
}

// Rearm restarts t's clock and marks it running. A non-zero timeout and a non-nil callback
// replace the current ones.
func (r *Registry) Rearm(t *Timer, timeout time.Duration, cb Callback) {
	if timeout > 0 {
		t.timeout = timeout
	}
	if cb != nil {
		t.callback = cb
	}
	t.running = true
	t.started = r.clock.Now()
}

// Stop pauses the registry. While paused, no timer is due and there is no deadline.
func (r *Registry) Stop() {
	r.running = false
}

// Start resumes the registry and restarts every member's clock from the current instant.
// Start does nothing when the registry is already running or empty.
func (r *Registry) Start() {
	if r.running || len(r.timers) == 0 {
		return
	}

	now := r.clock.Now()
	r.running = true
	for _, t := range r.timers {
		t.start(now)
	}
}
