// Package runlock enforces a single daemon instance via a file lock, so
// two daemons never share one database.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is a held single-instance lock.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the instance lock at path, creating the parent directory if
// needed. It does not block: a lock held elsewhere is an immediate error.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another instance holds %s", path)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file is left in place; only the flock is
// released.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
