// Package pidfile implements the PID-file lock cmd/kernoxd acquires at
// startup and releases at shutdown (SPEC_FULL.md §0: an external collaborator
// per spec.md's detection-pipeline properties, but still implemented here
// because a runnable agent needs one).
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrHeld is returned by Acquire when another live process already holds
// the lock (spec.md §7: "PID-file conflict ... Fatal at startup").
var ErrHeld = errors.New("pidfile: already held by another process")

// File represents an acquired PID-file lock.
type File struct {
	path string
	f    *os.File
}

// Acquire opens path, takes an exclusive non-blocking flock, and writes the
// current PID. It returns ErrHeld if the lock is already held.
func Acquire(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pidfile: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("pidfile: flock %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pidfile: truncate %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("pidfile: write %s: %w", path, err)
	}

	return &File{path: path, f: f}, nil
}

// Release unlocks and removes the PID file.
func (pf *File) Release() error {
	unix.Flock(int(pf.f.Fd()), unix.LOCK_UN)
	pf.f.Close()
	return os.Remove(pf.path)
}
