package lock

import (
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusPath             = "/org/freedesktop/login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusSessionInterface = "org.freedesktop.login1.Session"
)

type dbusCon struct {
	conn               *dbus.Conn
	loginSessionObject dbus.BusObject
}

// NewDbusSessionLock creates a D-Bus [org.freedesktop.login1] implementation of the Lock
// interface for the given session.
//
// sessionId is the ID of the session. Usually set to the XDG_SESSION_ID env var. When it is
// empty, the session of the current process is used.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
func NewDbusSessionLock(sessionId string) (Lock, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	path, err := sessionPath(conn.Object(dbusDest, dbusPath), sessionId)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &dbusCon{
		conn:               conn,
		loginSessionObject: conn.Object(dbusDest, path),
	}, nil
}

func sessionPath(manager dbus.BusObject, sessionId string) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	var call *dbus.Call

	if sessionId == "" {
		call = manager.Call(dbusManagerInterface+".GetSessionByPID", 0, uint32(os.Getpid()))
	} else {
		call = manager.Call(dbusManagerInterface+".GetSession", 0, sessionId)
	}

	if err := call.Store(&path); err != nil {
		if sessionId == "" {
			return "", fmt.Errorf("failed to find session of process %d: %w", os.Getpid(), err)
		}
		return "", fmt.Errorf("failed to find session %q: %w", sessionId, err)
	}

	if !path.IsValid() {
		return "", fmt.Errorf("session object path %q is invalid", path)
	}

	return path, nil
}

func (dc *dbusCon) SetLocked(locked bool) error {
	err := dc.loginSessionObject.
		Call(dbusSessionInterface+".SetLockedHint", 0, locked).Err
	if err != nil {
		return fmt.Errorf("could not set locked hint: %w", err)
	}

	return nil
}

func (dc *dbusCon) GetLocked() (bool, error) {
	variant, err := dc.loginSessionObject.GetProperty(dbusSessionInterface + ".LockedHint")
	if err != nil {
		return false, fmt.Errorf("could not get locked hint: %w", err)
	}

	lockedHint, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("LockedHint property result is not a boolean")
	}

	return lockedHint, nil
}

func (dc *dbusCon) Close() error {
	return dc.conn.Close()
}
