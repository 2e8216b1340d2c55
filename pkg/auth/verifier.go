package auth

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
	"golang.org/x/crypto/bcrypt"

	"github.com/MatthiasKunnen/screenlock/pkg/securemem"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserLocked         = errors.New("user is locked")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
	ErrAuthBackend        = errors.New("auth backend error")
)

// Verifier checks a candidate password. A nil error means the password is correct,
// ErrInvalidCredentials means it is not. Any other error is a backend failure.
//
// Implementations must not retain candidate.
type Verifier interface {
	Verify(candidate []byte) error
}

// HashVerifier compares candidates against a crypt(3) style hash held in locked memory.
type HashVerifier struct {
	hash *securemem.Buffer
}

func NewHashVerifier(hash *securemem.Buffer) *HashVerifier {
	return &HashVerifier{hash: hash}
}

func (v *HashVerifier) Verify(candidate []byte) error {
	hash := v.hash.Bytes()

	if bytes.HasPrefix(hash, []byte("$2")) {
		err := bcrypt.CompareHashAndPassword(hash, candidate)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return ErrInvalidCredentials
		default:
			return fmt.Errorf("%w: bcrypt: %v", ErrAuthBackend, err)
		}
	}

	crypter, err := crypterFor(hash)
	if err != nil {
		return err
	}
	// The crypt API takes the hash as a string; the copy is the hash, never the password.
	if err := crypter.Verify(string(hash), candidate); err != nil {
		return ErrInvalidCredentials
	}

	return nil
}

// crypterFor picks the crypt implementation by hash prefix. Formats such as yescrypt ($y$) or
// scrypt ($7$) are not implemented in-process.
func crypterFor(hash []byte) (crypt.Crypter, error) {
	switch {
	case bytes.HasPrefix(hash, []byte("$6$")):
		return sha512_crypt.New(), nil
	case bytes.HasPrefix(hash, []byte("$5$")):
		return sha256_crypt.New(), nil
	case bytes.HasPrefix(hash, []byte("$1$")):
		return md5_crypt.New(), nil
	default:
		return nil, ErrUnsupportedHash
	}
}

// Fallback uses Primary and, when Primary cannot handle the stored hash, Secondary.
type Fallback struct {
	Primary   Verifier
	Secondary Verifier
}

func (f Fallback) Verify(candidate []byte) error {
	err := f.Primary.Verify(candidate)
	if errors.Is(err, ErrUnsupportedHash) && f.Secondary != nil {
		return f.Secondary.Verify(candidate)
	}
	return err
}
