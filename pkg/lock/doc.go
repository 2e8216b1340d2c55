// Package lock publishes the lock state of the current login session.
// The default implementation talks to systemd-logind using its D-Bus interface,
// [org.freedesktop.login1].
//
// The locked hint is informational. Other programs, such as idle daemons and session
// overviews, read it to find out whether the session is already covered.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package lock
