// Package x11 connects the lock screen to an X server.
//
// xgb reads the X socket on its own goroutine. Conn moves the events it delivers into a queue
// and signals an eventfd, so the event loop can wait on a single descriptor with epoll and
// still never read the socket concurrently with xgb.
package x11

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"golang.org/x/sys/unix"

	"github.com/MatthiasKunnen/screenlock/pkg/eventloop"
)

var ErrClosed = errors.New("X connection closed")

type Conn struct {
	x     *xgb.Conn
	setup *xproto.SetupInfo
	log   *slog.Logger

	// keymap and dpmsReady are only touched by the goroutine running the event loop.
	keymap    *keymap
	dpmsReady bool

	mu      sync.Mutex
	efd     int
	queue   []xgb.Event
	closed  bool
	targets []*Target
}

// Connect opens display, or $DISPLAY when display is empty.
func Connect(display string, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	x, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		x.Close()
		return nil, fmt.Errorf("failed to create eventfd: %w", err)
	}

	c := &Conn{
		x:     x,
		setup: xproto.Setup(x),
		log:   logger,
		efd:   efd,
	}

	c.keymap, err = loadKeymap(x, c.setup)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	go c.pump()

	return c, nil
}

// ScreenCount returns the number of X screens.
func (c *Conn) ScreenCount() int {
	return len(c.setup.Roots)
}

func (c *Conn) pump() {
	for {
		ev, xerr := c.x.WaitForEvent()
		if ev == nil && xerr == nil {
			c.mu.Lock()
			c.closed = true
			c.signalLocked()
			c.mu.Unlock()
			return
		}
		if xerr != nil {
			c.log.Debug("X request failed", "error", xerr)
			continue
		}

		c.mu.Lock()
		c.queue = append(c.queue, ev)
		c.signalLocked()
		c.mu.Unlock()
	}
}

// signalLocked makes the eventfd readable. Holding mu is required.
func (c *Conn) signalLocked() {
	if c.efd < 0 {
		return
	}
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(c.efd, one[:])
}

// resetLocked makes the eventfd unreadable. Holding mu is required.
func (c *Conn) resetLocked() {
	if c.efd < 0 {
		return
	}
	var buf [8]byte
	_, _ = unix.Read(c.efd, buf[:])
}

// Fd returns the eventfd that is readable while events are queued or the connection is gone.
func (c *Conn) Fd() int {
	return c.efd
}

// PollEvent returns the next queued event, translated for the event loop. Events the loop has
// no use for are reported as eventloop.EventOther.
func (c *Conn) PollEvent() (eventloop.Event, bool, error) {
	ev, err := c.next()
	if err != nil || ev == nil {
		return eventloop.Event{}, false, err
	}

	switch e := ev.(type) {
	case xproto.KeyPressEvent:
		key := c.keymap.classify(e.Detail, e.State)
		return eventloop.Event{Kind: eventloop.EventKey, Key: key}, true, nil
	case xproto.MappingNotifyEvent:
		if e.Request == xproto.MappingKeyboard {
			if err := c.reloadKeymap(); err != nil {
				c.log.Warn("Failed to reload keyboard mapping", "error", err)
			}
		}
	case xproto.CirculateNotifyEvent, xproto.MapNotifyEvent:
		return eventloop.Event{Kind: eventloop.EventRestack}, true, nil
	case xproto.VisibilityNotifyEvent:
		if e.State != xproto.VisibilityUnobscured {
			return eventloop.Event{Kind: eventloop.EventRestack}, true, nil
		}
	}

	return eventloop.Event{Kind: eventloop.EventOther}, true, nil
}

func (c *Conn) next() (xgb.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		if c.closed {
			return nil, ErrClosed
		}
		c.resetLocked()
		return nil, nil
	}

	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return ev, nil
}

func (c *Conn) reloadKeymap() error {
	km, err := loadKeymap(c.x, c.setup)
	if err != nil {
		return err
	}
	c.keymap = km
	return nil
}

// Flush reports whether the connection is still usable. xgb writes every request as soon as it
// is issued, so there is nothing to send.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Close destroys the lock windows and closes the connection.
func (c *Conn) Close() error {
	for _, t := range c.targets {
		t.destroy()
	}
	c.x.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.efd < 0 {
		return nil
	}
	err := unix.Close(c.efd)
	c.efd = -1
	return err
}
