package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// IndexLockFile is the lock file name inside the data directory.
const IndexLockFile = ".index.lock"

// IndexLock serializes index builds across processes.
type IndexLock struct {
	lock *flock.Flock
}

// NewIndexLock returns a lock on <dataDir>/.index.lock.
func NewIndexLock(dataDir string) (*IndexLock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &IndexLock{lock: flock.New(filepath.Join(dataDir, IndexLockFile))}, nil
}

// TryLock acquires the lock without blocking. It reports false if another
// process holds it.
func (l *IndexLock) TryLock() (bool, error) {
	locked, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	return locked, nil
}

// Unlock releases the lock.
func (l *IndexLock) Unlock() error {
	return l.lock.Unlock()
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.lock.Path()
}
