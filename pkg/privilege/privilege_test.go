package privilege

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDrop_Unelevated(t *testing.T) {
	if Elevated() {
		t.Skip("test binary runs set-id")
	}

	uid, gid := unix.Getuid(), unix.Getgid()
	require.NoError(t, Drop())

	assert.Equal(t, uid, unix.Geteuid())
	assert.Equal(t, gid, unix.Getegid())
	assert.False(t, Elevated())

	// Dropping twice is harmless.
	assert.NoError(t, Drop())
}

func TestCheckReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.NoError(t, CheckReadable(path))

	err := CheckReadable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
