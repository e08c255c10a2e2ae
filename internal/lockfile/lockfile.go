// Package lockfile provides a PID lock file that serialises ingestion runs
// against one store directory across processes.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/logger"
)

// FileName is the lock file created inside the store directory.
const FileName = "ingest.lock"

// Defaults for Acquire.
const (
	DefaultTimeout   = 5 * time.Second
	DefaultRetryWait = 250 * time.Millisecond
)

// Lock is a held lock file.
type Lock struct {
	path string
	pid  int
}

// processRunning is replaced in tests.
var processRunning = isProcessRunning

// Acquire takes the lock in dir, waiting up to timeout for another live
// process to release it. Stale locks left by dead processes are removed.
// It fails with domain.ErrIngestInProgress when the wait times out.
func Acquire(ctx context.Context, dir string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	pid := os.Getpid()
	deadline := time.Now().Add(timeout)

	for {
		err := create(path, pid)
		if err == nil {
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		owner, cleaned, err := cleanStale(path)
		if err != nil {
			return nil, err
		}
		if cleaned {
			continue
		}
		if owner == pid {
			return nil, fmt.Errorf("%w: lock already held by this process", domain.ErrIngestInProgress)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: store %s locked by process %d", domain.ErrIngestInProgress, dir, owner)
		}

		logger.Debug("store locked by process %d, waiting", owner)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(DefaultRetryWait):
		}
	}
}

// Release removes the lock file if this lock still owns it.
func (l *Lock) Release() error {
	owner, err := readPID(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != l.pid {
		return fmt.Errorf("lock owned by process %d, not %d", owner, l.pid)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// create writes the lock file only if it does not already exist.
func create(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// cleanStale removes the lock if its owner is dead or its content is
// corrupt. It returns the owner PID and whether the file was removed.
func cleanStale(path string) (int, bool, error) {
	pid, err := readPID(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return 0, true, nil
	case errors.Is(err, errCorrupt):
		logger.Warn("removing corrupt lock file %s", path)
	case err != nil:
		return 0, false, err
	case processRunning(pid):
		return pid, false, nil
	default:
		logger.Info("removing stale lock held by dead process %d", pid)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return pid, false, fmt.Errorf("removing stale lock: %w", err)
	}
	return pid, true, nil
}

var errCorrupt = errors.New("corrupt lock file")

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errCorrupt
	}
	return pid, nil
}
