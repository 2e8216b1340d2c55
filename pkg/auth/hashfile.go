package auth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MatthiasKunnen/screenlock/pkg/securemem"
)

const (
	DefaultShadowPath = "/etc/shadow"
	DefaultPasswdPath = "/etc/passwd"

	// scratchSize bounds the length of a single line in the credential files.
	scratchSize = 4096
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrShadowed     = errors.New("password hash is kept in the shadow file")
)

// LoadShadowHash copies the password hash of user from a shadow(5) file into dst.
// Reading /etc/shadow requires elevated rights.
func LoadShadowHash(path, user string, dst *securemem.Buffer) error {
	return loadHash(path, user, dst)
}

// LoadPasswdHash copies the password field of user from a passwd(5) file into dst. Systems
// that keep hashes in the shadow file only have a placeholder here, which is an error.
func LoadPasswdHash(path, user string, dst *securemem.Buffer) error {
	if err := loadHash(path, user, dst); err != nil {
		return err
	}
	if bytes.Equal(dst.Bytes(), []byte("x")) {
		dst.Clear()
		return ErrShadowed
	}
	return nil
}

// loadHash streams the colon separated file through locked scratch memory so that no line of
// it ends up on the Go heap.
func loadHash(path, user string, dst *securemem.Buffer) error {
	if user == "" {
		return ErrUserNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scratch, err := securemem.New(scratchSize)
	if err != nil {
		return err
	}
	defer scratch.Destroy()

	buf := scratch.Raw()
	n := 0
	for {
		m, rerr := f.Read(buf[n:])
		n += m

		start := 0
		for {
			i := bytes.IndexByte(buf[start:n], '\n')
			if i < 0 {
				break
			}
			if found, err := matchLine(buf[start:start+i], user, dst); found || err != nil {
				return err
			}
			start += i + 1
		}
		n = copy(buf, buf[start:n])

		switch {
		case errors.Is(rerr, io.EOF):
			if n > 0 {
				if found, err := matchLine(buf[:n], user, dst); found || err != nil {
					return err
				}
			}
			return fmt.Errorf("%w: %s in %s", ErrUserNotFound, user, path)
		case rerr != nil:
			return fmt.Errorf("failed to read %s: %w", path, rerr)
		case n == len(buf):
			return fmt.Errorf("line in %s exceeds %d bytes", path, len(buf))
		}
	}
}

// matchLine reports whether line belongs to user and, if so, stores its second field in dst.
func matchLine(line []byte, user string, dst *securemem.Buffer) (bool, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) == 0 || line[0] == '#' {
		return false, nil
	}

	name, rest, ok := bytes.Cut(line, []byte{':'})
	if !ok || string(name) != user {
		return false, nil
	}

	hash, _, _ := bytes.Cut(rest, []byte{':'})
	if len(hash) == 0 || hash[0] == '!' || hash[0] == '*' {
		return true, ErrUserLocked
	}
	if !dst.Set(hash) {
		return true, fmt.Errorf("password hash of %s exceeds %d bytes", user, dst.Cap()-1)
	}

	return true, nil
}
