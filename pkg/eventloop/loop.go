// Package eventloop runs the lock screen: it sleeps on the display connection until input
// arrives or the next timer expires, and feeds key presses to the unlock state machine.
//
// The loop is single threaded. Waiting on the display descriptor is the only point where it
// blocks.
package eventloop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MatthiasKunnen/screenlock/pkg/poll"
	"github.com/MatthiasKunnen/screenlock/pkg/timer"
	"github.com/MatthiasKunnen/screenlock/pkg/unlock"
)

var ErrDisplayLost = errors.New("display connection lost")

type EventKind int

const (
	EventOther EventKind = iota
	// EventKey is a key press.
	EventKey
	// EventRestack means another window may have been stacked above a lock window.
	EventRestack
)

type Event struct {
	Kind EventKind
	Key  unlock.Key
}

// Display is the connection to the display server.
type Display interface {
	// Fd returns a descriptor that is readable while events are queued.
	Fd() int
	// PollEvent returns the next queued event without blocking. ok is false when the queue is
	// empty. An error means the connection is unusable.
	PollEvent() (ev Event, ok bool, err error)
	// Flush sends buffered requests.
	Flush() error
}

// Machine is the part of the unlock state machine used by the loop.
type Machine interface {
	Handle(key unlock.Key) unlock.State
}

type Config struct {
	Display Display
	Timers  *timer.Registry
	Machine Machine
	// Idle is rearmed on every key press. Optional.
	Idle *timer.Timer
	// Restack raises the lock windows. Optional.
	Restack func()
	Clock   timer.Clock
	Logger  *slog.Logger
}

// Loop owns the session state: display, timers and state machine. Nothing else touches them
// while Run executes.
type Loop struct {
	display Display
	poller  *poll.Poller
	timers  *timer.Registry
	machine Machine
	idle    *timer.Timer
	restack func()
	clock   timer.Clock
	log     *slog.Logger
}

func New(cfg Config) (*Loop, error) {
	if cfg.Display == nil || cfg.Timers == nil || cfg.Machine == nil {
		return nil, errors.New("display, timers and machine are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = timer.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Restack == nil {
		cfg.Restack = func() {}
	}

	poller, err := poll.New(cfg.Display.Fd())
	if err != nil {
		return nil, fmt.Errorf("failed to poll display connection: %w", err)
	}

	return &Loop{
		display: cfg.Display,
		poller:  poller,
		timers:  cfg.Timers,
		machine: cfg.Machine,
		idle:    cfg.Idle,
		restack: cfg.Restack,
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}, nil
}

// Run starts the timers and processes events until the password was verified, in which case
// it returns nil. Any returned error means the session cannot continue.
func (l *Loop) Run() error {
	l.timers.Start()

	for {
		timeout := time.Duration(-1)
		if d, ok := l.timers.NextDeadline(l.clock.Now()); ok {
			timeout = d
		}

		ready, err := l.poller.Wait(timeout)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDisplayLost, err)
		}

		// Time passed regardless of why the wait ended.
		if n, _ := l.timers.FireDue(l.clock.Now()); n > 0 {
			l.log.Debug("Timers fired", "count", n)
		}

		if !ready {
			continue
		}

		done, err := l.drain()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// drain handles every queued event. The descriptor is level triggered, so one wake-up may stand
// for many events.
func (l *Loop) drain() (done bool, err error) {
	for {
		ev, ok, err := l.display.PollEvent()
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrDisplayLost, err)
		}
		if !ok {
			break
		}

		switch ev.Kind {
		case EventKey:
			if l.idle != nil {
				l.timers.Rearm(l.idle, 0, nil)
			}
			if l.machine.Handle(ev.Key) == unlock.Succeeded {
				if err := l.display.Flush(); err != nil {
					l.log.Warn("Failed to flush display after unlock", "error", err)
				}
				return true, nil
			}
		case EventRestack:
			l.restack()
		}
	}

	if err := l.display.Flush(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrDisplayLost, err)
	}
	return false, nil
}

func (l *Loop) Close() error {
	return l.poller.Close()
}
