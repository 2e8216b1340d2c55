package secrets

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.secrets"
	dbusServiceInterface = "org.freedesktop.Secret.Service"
	dbusPromptInterface  = "org.freedesktop.Secret.Prompt"
	dbusPath             = "/org/freedesktop/secrets"

	// noPrompt is returned by the service when the operation completed without user interaction.
	noPrompt dbus.ObjectPath = "/"

	DefaultPromptTimeout = 30 * time.Second
)

var (
	ErrPromptDismissed = errors.New("secret service prompt dismissed")
	ErrPromptRequired  = errors.New("secret service requires a prompt")
)

type Secrets struct {
	conn *dbus.Conn
	obj  dbus.BusObject

	// PromptTimeout bounds how long a prompt may take. Zero or less dismisses prompts without
	// showing them, for callers that hold the input grabs.
	PromptTimeout time.Duration
}

func New() (*Secrets, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	s := &Secrets{
		conn:          conn,
		PromptTimeout: DefaultPromptTimeout,
	}
	s.obj = conn.Object(dbusDest, dbusPath)

	return s, nil
}

// collectionPath turns a collection name into its object path. "default" is the alias of the
// login keyring. Names containing a slash are taken relative to "/org/freedesktop/secrets/".
func collectionPath(name string) dbus.ObjectPath {
	switch {
	case name == "default":
		return dbusPath + "/aliases/default"
	case strings.Contains(name, "/"):
		return dbus.ObjectPath(dbusPath + "/" + strings.TrimPrefix(name, "/"))
	default:
		return dbus.ObjectPath(dbusPath + "/collection/" + name)
	}
}

// LockCollections locks the named collections and returns the paths the service reports as
// locked.
func (s *Secrets) LockCollections(names ...string) ([]dbus.ObjectPath, error) {
	if len(names) == 0 {
		return nil, nil
	}

	objs := make([]dbus.ObjectPath, len(names))
	for i, name := range names {
		objs[i] = collectionPath(name)
	}

	var locked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	err := s.obj.Call(dbusServiceInterface+".Lock", 0, objs).Store(&locked, &prompt)
	if err != nil {
		return nil, fmt.Errorf("could not lock collections: %w", err)
	}

	if prompt == noPrompt || prompt == "" {
		return locked, nil
	}

	if s.PromptTimeout <= 0 {
		s.dismiss(prompt)
		return locked, fmt.Errorf("%w: %s", ErrPromptRequired, prompt)
	}

	promptLocked, err := s.runPrompt(prompt)
	if err != nil {
		return locked, err
	}
	return append(locked, promptLocked...), nil
}

// runPrompt shows the prompt and waits for its Completed signal.
func (s *Secrets) runPrompt(prompt dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("prompt %s requires a bus connection", prompt)
	}

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(prompt),
		dbus.WithMatchInterface(dbusPromptInterface),
		dbus.WithMatchMember("Completed"),
	}
	if err := s.conn.AddMatchSignal(match...); err != nil {
		return nil, fmt.Errorf("failed to register Completed signal: %w", err)
	}
	defer func() { _ = s.conn.RemoveMatchSignal(match...) }()

	c := make(chan *dbus.Signal, 4)
	s.conn.Signal(c)
	defer s.conn.RemoveSignal(c)

	err := s.conn.Object(dbusDest, prompt).Call(dbusPromptInterface+".Prompt", 0, "").Err
	if err != nil {
		return nil, fmt.Errorf("failed to show prompt %s: %w", prompt, err)
	}

	timeout := time.After(s.PromptTimeout)
	for {
		select {
		case sig := <-c:
			if sig == nil || sig.Path != prompt || len(sig.Body) < 2 {
				continue
			}
			if dismissed, _ := sig.Body[0].(bool); dismissed {
				return nil, ErrPromptDismissed
			}
			var locked []dbus.ObjectPath
			if v, ok := sig.Body[1].(dbus.Variant); ok {
				locked, _ = v.Value().([]dbus.ObjectPath)
			}
			return locked, nil
		case <-timeout:
			s.dismiss(prompt)
			return nil, fmt.Errorf("prompt %s did not complete within %s", prompt, s.PromptTimeout)
		}
	}
}

func (s *Secrets) dismiss(prompt dbus.ObjectPath) {
	if s.conn == nil {
		return
	}
	_ = s.conn.Object(dbusDest, prompt).Call(dbusPromptInterface+".Dismiss", 0).Err
}

func (s *Secrets) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
