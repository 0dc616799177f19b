//go:build !windows

package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock provides cross-process locking using flock.
type fileLock struct {
	path string
}

// lockHandle represents an acquired lock that must be released.
type lockHandle struct {
	file *os.File
}

// newFileLock creates a lock for the document at path.
// The lock file lives at path + ".lock".
func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock"}
}

// Lock blocks until an exclusive lock is acquired.
func (l *fileLock) Lock() (*lockHandle, error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return &lockHandle{file: f}, nil
}

// Unlock releases the lock.
func (h *lockHandle) Unlock() error {
	if h == nil || h.file == nil {
		return nil
	}
	defer func() { h.file = nil }()

	if err := unix.Flock(int(h.file.Fd()), unix.LOCK_UN); err != nil {
		_ = h.file.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	return nil
}
