// Package securemem provides a fixed-capacity byte buffer for secrets.
//
// The buffer lives outside the Go heap in anonymous pages that are locked against swapping for
// the buffer's whole lifetime. Its content is overwritten before the pages are released.
package securemem

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// DefaultCapacity matches the longest password accepted at the lock screen, terminator
// included.
const DefaultCapacity = 1024

var ErrLockFailed = errors.New("failed to lock memory")

// Buffer holds at most Cap()-1 bytes followed by a zero terminator.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	mem    []byte
	mapped []byte
	n      int
}

// New maps and locks a buffer of the given capacity. Failing to lock the memory is an error:
// a secret must never be held in swappable memory.
func New(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("capacity %d too small", capacity)
	}

	size := roundToPage(capacity)
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("failed to map %d bytes: %w", size, err)
	}

	if err := unix.Mlock(mem); err != nil {
		_ = unix.Munmap(mem)
		return nil, fmt.Errorf("%w (check RLIMIT_MEMLOCK): %w", ErrLockFailed, err)
	}

	// Keep pages out of core dumps and out of children after fork.
	_ = unix.Madvise(mem, unix.MADV_DONTDUMP)
	_ = unix.Madvise(mem, unix.MADV_DONTFORK)

	return &Buffer{mem: mem[:capacity:capacity], mapped: mem}, nil
}

func roundToPage(n int) int {
	page := unix.Getpagesize()
	return (n + page - 1) / page * page
}

// Cap returns the capacity including the terminator.
func (b *Buffer) Cap() int { return len(b.mem) }

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return b.n }

// RuneCount returns the number of UTF-8 characters held.
func (b *Buffer) RuneCount() int {
	return utf8.RuneCount(b.Bytes())
}

// Bytes returns the held bytes. The slice aliases the locked memory and is only valid until
// the next mutation.
func (b *Buffer) Bytes() []byte {
	if b.mem == nil {
		return nil
	}
	return b.mem[:b.n:b.n]
}

// Append adds p as a whole. It returns false, leaving the buffer untouched, when p would not fit
// in front of the terminator.
func (b *Buffer) Append(p []byte) bool {
	if b.mem == nil || b.n+len(p) > len(b.mem)-1 {
		return false
	}
	b.n += copy(b.mem[b.n:], p)
	b.mem[b.n] = 0
	return true
}

// AppendRune adds the UTF-8 encoding of r.
func (b *Buffer) AppendRune(r rune) bool {
	var enc [utf8.UTFMax]byte
	n := utf8.EncodeRune(enc[:], r)
	ok := b.Append(enc[:n])
	wipe(enc[:])
	return ok
}

// Backspace removes the last UTF-8 character. It returns false when the buffer is empty.
func (b *Buffer) Backspace() bool {
	if b.n == 0 {
		return false
	}
	_, size := utf8.DecodeLastRune(b.mem[:b.n])
	for i := b.n - size; i < b.n; i++ {
		b.mem[i] = 0
	}
	b.n -= size
	runtime.KeepAlive(b.mem)
	return true
}

// Clear zeroes the held bytes and resets the length.
func (b *Buffer) Clear() {
	if b.mem == nil {
		return
	}
	clear(b.mem[:b.n+1])
	b.n = 0
	runtime.KeepAlive(b.mem)
}

// Set replaces the content with p. It returns false when p does not fit.
func (b *Buffer) Set(p []byte) bool {
	if b.mem == nil || len(p) > len(b.mem)-1 {
		return false
	}
	b.Clear()
	return b.Append(p)
}

// Equal compares the held bytes with p in constant time with respect to the content.
func (b *Buffer) Equal(p []byte) bool {
	return subtle.ConstantTimeCompare(b.Bytes(), p) == 1
}

// Raw exposes the complete backing storage, including bytes past the terminator.
func (b *Buffer) Raw() []byte {
	return b.mem
}

// Wipe overwrites the backing storage with values different from the ones it held, then
// resets the buffer to empty. The buffer stays usable.
func (b *Buffer) Wipe() {
	if b.mem == nil {
		return
	}
	wipe(b.mem)
	b.n = 0
	b.mem[0] = 0
}

// Destroy wipes, unlocks and unmaps the buffer. Calling Destroy again is a no-op.
func (b *Buffer) Destroy() error {
	if b.mem == nil {
		return nil
	}

	wipe(b.mapped)
	mapped := b.mapped
	b.mem, b.mapped = nil, nil
	b.n = 0

	return errors.Join(unix.Munlock(mapped), unix.Munmap(mapped))
}

// wipe fills p with random bytes, forcing each byte to differ from its previous value.
//
// The writes go through a non-inlined function and the slice is kept alive afterwards, so the
// compiler cannot prove the stores dead.
//
//go:noinline
func wipe(p []byte) {
	var pattern [64]byte
	for off := 0; off < len(p); off += len(pattern) {
		if _, err := rand.Read(pattern[:]); err != nil {
			// A counter derived pattern still changes every byte.
			for i := range pattern {
				pattern[i] = byte(off + i*7 + 1)
			}
		}
		chunk := p[off:min(off+len(pattern), len(p))]
		for i, old := range chunk {
			v := pattern[i]
			if v == old {
				v = ^old
			}
			chunk[i] = v
		}
	}
	clear(pattern[:])
	runtime.KeepAlive(p)
	runtime.KeepAlive(&pattern)
}
