// Package lockfile provides advisory file locking used to guard exclusive
// access to an embedded, file-owning store backend.
package lockfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrLockBusy is returned when a non-blocking lock cannot be acquired
// because another process holds a conflicting lock.
var ErrLockBusy = errors.New("lock busy: held by another process")

// IsLocked returns true if err indicates the lock is held by another process.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLockBusy)
}

// Lock represents a held advisory exclusive lock on a file.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if needed) the file at path and takes a
// non-blocking exclusive advisory lock on it. Returns ErrLockBusy if
// another process already holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	if err := FlockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the underlying file.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = FlockUnlock(l.f)
	return l.f.Close()
}
