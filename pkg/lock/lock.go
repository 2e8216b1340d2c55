package lock

import "io"

// Lock represents the lock state of a login session.
//
// It is safe to call Lock's methods concurrently.
type Lock interface {

	// GetLocked gets the current state of the session; true=Locked, false=unlocked.
	GetLocked() (bool, error)

	// SetLocked tells the session manager whether a lock screen currently covers the session.
	// It does not lock anything by itself.
	SetLocked(locked bool) error

	io.Closer
}
