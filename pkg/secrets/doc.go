// Package secrets allows communication with [org.freedesktop.Secret].
// Program that provide this API include Gnome Keyring, KDE Wallet, and keepassxc.
//
// Locking a collection makes its items unreadable until the user unlocks it again, so
// secrets are not exposed to whoever finds an unlocked keyring behind a lock screen.
//
// [org.freedesktop.Secret]: https://specifications.freedesktop.org/secret-service-spec/latest/
package secrets
