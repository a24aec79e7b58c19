package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/meilihook/internal/errors"
)

// InstanceLock is an exclusive, non-blocking file lock that keeps a second
// daemon from starting against the same socket.
type InstanceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewInstanceLock creates a lock backed by the file at path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock or fails immediately when another process holds it.
func (l *InstanceLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return errors.New(errors.ErrCodeDaemonLocked, "another daemon holds "+l.path, nil).
			WithSuggestion("run 'meilihook daemon stop' first")
	}
	l.locked = true
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *InstanceLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *InstanceLock) Path() string {
	return l.path
}

// Locked reports whether this process holds the lock.
func (l *InstanceLock) Locked() bool {
	return l.locked
}
