package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/creack/pty"
)

const DefaultSuTimeout = 6 * time.Second

// SuVerifier delegates verification to su(1), which talks to whatever authentication stack the
// host uses. su runs behind a PTY because it refuses to read a password from a pipe.
type SuVerifier struct {
	user    string
	path    string
	timeout time.Duration
}

// CheckSu returns the path of su, or an error wrapping ErrAuthBackend when it is not installed.
func CheckSu() (string, error) {
	path, err := exec.LookPath("su")
	if err != nil {
		return "", fmt.Errorf("%w: su not found: %v", ErrAuthBackend, err)
	}
	return path, nil
}

// NewSuVerifier locates su and returns a verifier for user.
func NewSuVerifier(user string, timeout time.Duration) (*SuVerifier, error) {
	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("%w: empty user", ErrAuthBackend)
	}
	path, err := CheckSu()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultSuTimeout
	}

	return &SuVerifier{user: user, path: path, timeout: timeout}, nil
}

func (v *SuVerifier) Verify(candidate []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, v.path, "-s", "/bin/sh", "-c", "true", v.user)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("%w: start su: %v", ErrAuthBackend, err)
	}
	defer func() { _ = f.Close() }()

	// prompted is only read after readerDone is closed.
	prompted := false
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)

		var out bytes.Buffer
		buf := make([]byte, 512)
		for {
			_ = f.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			n, rerr := f.Read(buf)
			if n > 0 && !prompted {
				out.Write(buf[:n])
				if bytes.Contains(bytes.ToLower(out.Bytes()), []byte("password")) {
					prompted = true
					_, _ = f.Write(candidate)
					_, _ = f.Write([]byte{'\n'})
				}
			}
			if errors.Is(rerr, os.ErrDeadlineExceeded) {
				continue
			}
			if rerr != nil {
				return
			}
		}
	}()

	err = cmd.Wait()
	_ = f.Close()
	<-readerDone

	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: su timed out", ErrAuthBackend)
	case !prompted:
		// su exits 0 without asking when PAM trusts the caller, e.g. for root.
		return fmt.Errorf("%w: su did not ask for a password", ErrAuthBackend)
	case err != nil:
		return ErrInvalidCredentials
	default:
		return nil
	}
}
