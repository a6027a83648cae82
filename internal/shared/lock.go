package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in an output directory while a run writes to it.
const LockFileName = ".spotx.lock"

// DirLock is an exclusive advisory lock over an output directory.
type DirLock struct {
	path string
	lock *flock.Flock
}

// LockDir creates dir if needed and takes its run lock without blocking.
//
// Returns [ErrLocked] when another process holds it.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, LockFileName)
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &DirLock{path: path, lock: l}, nil
}

// Path returns the lock file location.
func (d *DirLock) Path() string { return d.path }

// Unlock releases the lock and removes the lock file.
func (d *DirLock) Unlock() error {
	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	_ = os.Remove(d.path)
	return nil
}
