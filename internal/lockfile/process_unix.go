//go:build unix

package lockfile

import (
	"errors"
	"syscall"
)

// isProcessRunning sends signal 0 to pid.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
