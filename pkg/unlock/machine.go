// Package unlock implements the password entry state machine of the lock screen.
package unlock

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MatthiasKunnen/screenlock/pkg/auth"
	"github.com/MatthiasKunnen/screenlock/pkg/securemem"
	"github.com/MatthiasKunnen/screenlock/pkg/timer"
)

const DefaultFailFlash = 3 * time.Second

// KeyKind is the meaning of a key press, as decided by the display adapter.
type KeyKind int

const (
	KeyIgnored KeyKind = iota
	KeyEscape
	KeyEnter
	KeyBackspace
	KeyChar
)

// Key is a classified key press. Rune is only set for KeyChar.
type Key struct {
	Kind KeyKind
	Rune rune
}

// State is the outcome of handling a key.
type State int

const (
	// Ignored is reported for a key that changed nothing. It is never the session state.
	Ignored State = iota
	Idle
	Editing
	Failed
	Succeeded
)

func (s State) String() string {
	switch s {
	case Ignored:
		return "ignored"
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Screen renders the lock visuals on one output. Only the number of typed characters is ever
// passed, never the characters.
type Screen interface {
	PaintInput(typed int)
	PaintError()
}

type Options struct {
	// FailFlash is how long the error visual stays up after a wrong password.
	FailFlash time.Duration
	Logger    *slog.Logger
}

// Machine consumes key presses, edits the password buffer and verifies it on Enter.
type Machine struct {
	buf      *securemem.Buffer
	verifier auth.Verifier
	screens  []Screen
	timers   *timer.Registry
	flash    *timer.Timer
	state    State
	log      *slog.Logger
}

// New creates a machine in the Idle state and registers its error flash timer with timers.
func New(
	buf *securemem.Buffer,
	verifier auth.Verifier,
	screens []Screen,
	timers *timer.Registry,
	opts Options,
) (*Machine, error) {
	if opts.FailFlash <= 0 {
		opts.FailFlash = DefaultFailFlash
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Machine{
		buf:      buf,
		verifier: verifier,
		screens:  screens,
		timers:   timers,
		state:    Idle,
		log:      opts.Logger,
	}
	m.flash = timers.NewTimer(opts.FailFlash, timer.OneShot, true, timer.CallbackFunc(m.endFlash))
	if err := timers.Add(m.flash); err != nil {
		return nil, fmt.Errorf("failed to register flash timer: %w", err)
	}

	return m, nil
}

// State returns the session state. It is never Ignored.
func (m *Machine) State() State { return m.state }

// Typed returns the number of characters entered.
func (m *Machine) Typed() int { return m.buf.RuneCount() }

// Handle applies key and returns the resulting state, or Ignored when the key had no effect.
func (m *Machine) Handle(key Key) State {
	if m.state == Succeeded {
		return Ignored
	}

	switch key.Kind {
	case KeyEscape:
		m.buf.Clear()
		m.state = Idle
		m.paintInput()
	case KeyBackspace:
		if !m.buf.Backspace() {
			return Ignored
		}
		m.state = m.editState()
		m.paintInput()
	case KeyEnter:
		m.verify()
	case KeyChar:
		// A full buffer drops the key without telling the user.
		m.buf.AppendRune(key.Rune)
		m.state = Editing
		m.paintInput()
	default:
		return Ignored
	}

	return m.state
}

func (m *Machine) verify() {
	err := m.verifier.Verify(m.buf.Bytes())
	if err == nil {
		m.buf.Clear()
		m.state = Succeeded
		return
	}
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		m.log.Warn("Password verification failed", "error", err)
	}

	m.buf.Clear()
	m.state = Failed
	for _, s := range m.screens {
		s.PaintError()
	}
	m.timers.Rearm(m.flash, 0, nil)
}

func (m *Machine) editState() State {
	if m.buf.Len() > 0 {
		return Editing
	}
	return Idle
}

func (m *Machine) paintInput() {
	typed := m.Typed()
	for _, s := range m.screens {
		s.PaintInput(typed)
	}
}

// endFlash reverts the error visual. Characters typed while the error was shown are counted.
func (m *Machine) endFlash(*timer.Timer, time.Time) {
	if m.state == Succeeded {
		return
	}
	if m.state == Failed {
		m.state = m.editState()
	}
	m.paintInput()
}
