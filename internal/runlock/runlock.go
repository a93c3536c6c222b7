// Package runlock prevents two pipeline runs from driving the same
// workspace at once. The whole design assumes one writer; the lock makes
// that assumption explicit.
package runlock

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Lock manages a pid-stamped lock file for one workspace.
type Lock struct {
	path string
}

// New creates a lock manager for the given lock file path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire attempts to take the lock.
// Returns an error if another live process holds it. Stale locks left by
// dead processes are cleaned up automatically.
func (l *Lock) Acquire() error {
	// Try atomic creation with O_EXCL
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
		f.Close()
		if writeErr != nil {
			os.Remove(l.path)
			return fmt.Errorf("failed to write lock file: %w", writeErr)
		}
		return nil
	}

	if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// Lock file exists - check if it's stale
	data, readErr := os.ReadFile(l.path)
	if readErr != nil {
		return fmt.Errorf("failed to read existing lock file: %w", readErr)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		// Invalid PID in lock file - treat as stale
		if removeErr := os.Remove(l.path); removeErr != nil {
			return fmt.Errorf("failed to remove invalid lock file: %w", removeErr)
		}
		return l.retryAcquire()
	}

	if processExists(pid) {
		return fmt.Errorf("another run is already driving this workspace (PID %d)", pid)
	}

	// Process is dead - remove stale lock and retry
	if removeErr := os.Remove(l.path); removeErr != nil {
		return fmt.Errorf("failed to remove stale lock file: %w", removeErr)
	}

	return l.retryAcquire()
}

// retryAcquire attempts to take the lock after removing a stale one.
// Only tries once to avoid infinite loops.
func (l *Lock) retryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock acquired by another process during retry")
		}
		return fmt.Errorf("failed to create lock file on retry: %w", err)
	}

	_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file on retry: %w", writeErr)
	}
	return nil
}

// Release removes the lock file.
// Returns nil if the lock file doesn't exist (idempotent).
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Holder reports the PID of a live lock holder, or 0 when the lock is
// free. Stale and invalid lock files are cleaned up along the way.
func (l *Lock) Holder() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read existing lock file: %w", err)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return 0, fmt.Errorf("failed to remove invalid lock file: %w", removeErr)
		}
		return 0, nil
	}

	if processExists(pid) {
		return pid, nil
	}

	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		return 0, fmt.Errorf("failed to remove stale lock file: %w", removeErr)
	}
	return 0, nil
}

// processExists checks if a process with the given PID is running.
// Uses kill with signal 0, which checks for process existence without sending a signal.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 doesn't send a signal, just checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
