// Package auth verifies the password typed at the lock screen.
//
// Two ways to verify exist:
//   - Comparing against the user's hash from the shadow or passwd file. The hash is read once,
//     while the process still has the rights to read it, into locked memory.
//   - Delegating to su(1) behind a pseudo terminal. This covers hash formats that cannot be
//     verified in-process, such as yescrypt.
package auth
