// Package lockfile keeps two interactive lorepatch instances from sharing a
// data directory.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// LockFileName is the name of the lock file created in the data directory.
const LockFileName = "lorepatch.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("data directory is locked by another lorepatch instance")

// LockError describes a lock held elsewhere.
type LockError struct {
	LockPath     string
	ExistingInfo string
}

func (e *LockError) Error() string {
	if e.ExistingInfo != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrLocked, e.LockPath, e.ExistingInfo)
	}
	return fmt.Sprintf("%s: %s", ErrLocked, e.LockPath)
}

func (e *LockError) Is(target error) bool { return target == ErrLocked }

// Lock is an acquired data directory lock.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes the exclusive lock on dataDir without blocking.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	lockPath := filepath.Join(dataDir, LockFileName)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !locked {
		info := readExistingLockInfo(lockPath)
		slog.Warn("data directory locked", "lock_path", lockPath, "existing_lock_info", info)
		return nil, &LockError{LockPath: lockPath, ExistingInfo: info}
	}

	if err := os.WriteFile(lockPath, []byte(fmt.Sprintf("pid=%d\n", os.Getpid())), 0o644); err != nil {
		slog.Warn("failed to write lock information", "error", err, "lock_path", lockPath)
	}

	slog.Debug("acquired data directory lock", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{fl: fl, path: lockPath}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release unlocks. Calling it more than once is harmless.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil || !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}

func readExistingLockInfo(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
