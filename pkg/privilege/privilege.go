// Package privilege permanently gives up set-user-ID and set-group-ID rights.
package privilege

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var ErrStillPrivileged = errors.New("privileges could be regained after dropping them")

// Elevated reports whether the effective ids differ from the real ids.
func Elevated() bool {
	return unix.Geteuid() != unix.Getuid() || unix.Getegid() != unix.Getgid()
}

// Drop sets the real, effective and saved ids to the real user and group. The group is dropped
// first because changing it requires the elevated user id.
//
// When the process ran with elevated rights Drop also checks that root cannot be regained.
func Drop() error {
	uid, gid := unix.Getuid(), unix.Getgid()
	wasElevated := Elevated()

	if err := unix.Setresgid(gid, gid, gid); err != nil {
		return fmt.Errorf("failed to drop group privileges: %w", err)
	}
	if err := unix.Setresuid(uid, uid, uid); err != nil {
		return fmt.Errorf("failed to drop user privileges: %w", err)
	}

	if Elevated() {
		return ErrStillPrivileged
	}
	if wasElevated && uid != 0 {
		if err := unix.Setuid(0); err == nil {
			return ErrStillPrivileged
		}
	}

	return nil
}

// CheckReadable reports whether the real user may read path. Use it before opening a
// user-chosen file while elevated.
func CheckReadable(path string) error {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}
