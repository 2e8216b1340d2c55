// Package grab acquires exclusive pointer and keyboard input for the lock screen.
//
// Window managers and applications often hold short-lived grabs, for example while a menu is
// open. Grabbing is therefore retried for a bounded number of attempts. Not getting both grabs
// is fatal: a lock screen that does not own the keyboard does not lock anything.
package grab

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAttempts = 1000
	DefaultBackoff  = time.Millisecond
)

var ErrGrabFailed = errors.New("failed to grab input")

// Target is one output whose input must be grabbed.
type Target interface {
	// GrabPointer tries once to grab the pointer. ok is false when another client holds it.
	GrabPointer() (ok bool, err error)
	// GrabKeyboard tries once to grab the keyboard.
	GrabKeyboard() (ok bool, err error)
}

type Options struct {
	Attempts int
	Backoff  time.Duration
	// Sleep waits between attempts. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Acquire grabs the pointer and then the keyboard of t. Each device gets its own budget of
// attempts.
func Acquire(t Target, opts Options) error {
	opts = opts.withDefaults()

	if err := retry("pointer", t.GrabPointer, opts); err != nil {
		return err
	}
	return retry("keyboard", t.GrabKeyboard, opts)
}

// AcquireAll grabs every target, stopping at the first failure.
func AcquireAll[T Target](targets []T, opts Options) error {
	for i, t := range targets {
		if err := Acquire(t, opts); err != nil {
			return fmt.Errorf("screen %d: %w", i, err)
		}
	}
	return nil
}

func retry(device string, try func() (bool, error), opts Options) error {
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		ok, err := try()
		if ok && err == nil {
			return nil
		}
		lastErr = err
		if attempt < opts.Attempts {
			opts.Sleep(opts.Backoff)
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrGrabFailed, device, opts.Attempts, lastErr)
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrGrabFailed, device, opts.Attempts)
}
