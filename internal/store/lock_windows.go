//go:build windows

package store

// fileLock is a no-op on Windows.
type fileLock struct{}

type lockHandle struct{}

func newFileLock(string) *fileLock { return &fileLock{} }

func (l *fileLock) Lock() (*lockHandle, error) { return &lockHandle{}, nil }

func (h *lockHandle) Unlock() error { return nil }
