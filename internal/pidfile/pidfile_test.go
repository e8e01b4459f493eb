package pidfile_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernox/agent/internal/pidfile"
)

func TestAcquire_WritesCurrentPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernox.pid")
	f, err := pidfile.Acquire(path)
	require.NoError(t, err)
	defer f.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquire_SecondAcquireFailsWithErrHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernox.pid")
	first, err := pidfile.Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = pidfile.Acquire(path)
	assert.ErrorIs(t, err, pidfile.ErrHeld)
}

func TestRelease_RemovesFileAndAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernox.pid")
	f, err := pidfile.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, f.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	second, err := pidfile.Acquire(path)
	require.NoError(t, err)
	defer second.Release()
}
