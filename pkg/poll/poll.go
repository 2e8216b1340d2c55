// Package poll waits for a single file descriptor to become readable, with a timeout.
package poll

import (
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidDescriptor is returned when the kernel rejects the watched descriptor.
	ErrInvalidDescriptor = errors.New("descriptor is no longer valid")
	// ErrHangup is returned when the peer of the watched descriptor went away.
	ErrHangup = errors.New("descriptor hung up")
)

// Poller is an epoll instance watching exactly one descriptor for readability.
type Poller struct {
	epfd   int
	fd     int
	events [1]unix.EpollEvent
}

func New(fd int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create epoll instance: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("failed to watch fd %d: %w", fd, err)
	}

	return &Poller{epfd: epfd, fd: fd}, nil
}

// Wait blocks until the descriptor is readable or timeout elapsed. A negative timeout blocks
// until the descriptor is readable.
//
// An interrupted wait returns (false, nil) so the caller can simply loop.
func (p *Poller) Wait(timeout time.Duration) (ready bool, err error) {
	n, err := unix.EpollWait(p.epfd, p.events[:], Milliseconds(timeout))
	switch {
	case errors.Is(err, unix.EINTR):
		return false, nil
	case errors.Is(err, unix.EBADF), errors.Is(err, unix.EINVAL):
		return false, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	case err != nil:
		return false, fmt.Errorf("epoll_wait: %w", err)
	case n == 0:
		return false, nil
	}

	ev := p.events[0].Events
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 && ev&unix.EPOLLIN == 0 {
		return false, ErrHangup
	}

	return ev&unix.EPOLLIN != 0, nil
}

func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// Milliseconds converts d to an epoll timeout. Sub-millisecond remainders round up so that a
// wait never ends before d elapsed. Negative durations mean "no timeout" and map to -1.
func Milliseconds(d time.Duration) int {
	if d < 0 {
		return -1
	}

	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}

	return int(ms)
}
