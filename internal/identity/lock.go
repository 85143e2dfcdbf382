package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ProjectLock is a cross-process advisory lock that serializes the *start*
// of indexing passes against a single project's data directory. It does not
// serialize individual file writes within a pass.
type ProjectLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewProjectLock creates a lock file at <dataDir>/.index.lock.
func NewProjectLock(dataDir string) *ProjectLock {
	lockPath := filepath.Join(dataDir, ".index.lock")
	return &ProjectLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock blocks until the exclusive lock is acquired.
func (l *ProjectLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("identity: create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("identity: acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *ProjectLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("identity: create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("identity: acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *ProjectLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("identity: release lock: %w", err)
	}
	l.locked = false
	return nil
}

// IsLocked reports whether this handle currently holds the lock.
func (l *ProjectLock) IsLocked() bool {
	return l.locked
}

// Path returns the lock file path.
func (l *ProjectLock) Path() string {
	return l.path
}
