package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// SweepLock is a cross-process lock so only one process sweeps a data
// directory at a time. It is also exclusive within a process: a second
// TryLock on the same SweepLock fails until Unlock.
type SweepLock struct {
	path  string
	flock *flock.Flock

	mu     sync.Mutex
	locked bool
}

// NewSweepLock creates a lock backed by the file at path.
func NewSweepLock(path string) *SweepLock {
	return &SweepLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns false if another process or caller holds it.
func (l *SweepLock) TryLock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *SweepLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *SweepLock) Path() string {
	return l.path
}
