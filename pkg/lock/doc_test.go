package lock_test

import (
	"log"
	"os"

	"github.com/MatthiasKunnen/screenlock/pkg/lock"
)

func ExampleLock_dbus() {
	l, err := lock.NewDbusSessionLock(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		log.Fatalf("Failed to initialize dbus lock: %v", err)
	}
	defer l.Close()

	// Cover the screens and grab input first.
	if err := l.SetLocked(true); err != nil {
		log.Printf("Failed to set locked hint: %v", err)
	}

	// Wait for the user to authenticate, then remove the cover.
	if err := l.SetLocked(false); err != nil {
		log.Printf("Failed to clear locked hint: %v", err)
	}

	locked, err := l.GetLocked()
	if err != nil {
		log.Fatalf("Failed to read locked hint: %v", err)
	}
	log.Printf("Session locked: %t", locked)
}
