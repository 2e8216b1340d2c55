// Package timer implements a registry of independently armed deadlines that is driven by a
// single event loop.
//
// The registry never blocks and never starts goroutines. The owner asks it how long it may
// sleep with [Registry.NextDeadline] and, after waking, runs expired callbacks with
// [Registry.FireDue].
//
// Three kinds of timers exist:
//   - [OneShot] fires once and is then suspended. It stays a member and can be re-enabled with
//     [Registry.Rearm].
//   - [Once] fires once and is then removed from the registry.
//   - [Repeat] restarts its clock every time it fires.
package timer
