// Package daemon holds process-level guards for the long-running guardian.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrRunning is returned when another live process holds the PID file.
var ErrRunning = errors.New("another guardian is running")

// PIDLock is a held PID file.
type PIDLock struct {
	path string
}

// AcquirePIDLock writes the current PID to path. A PID file naming a live
// process is an error; a stale or unreadable one is replaced.
func AcquirePIDLock(path string) (*PIDLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() && alive(pid) {
			return nil, fmt.Errorf("%w (PID %d)", ErrRunning, pid)
		}
		_ = os.Remove(path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w (pid file %s appeared concurrently)", ErrRunning, path)
		}
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return &PIDLock{path: path}, nil
}

// Release removes the PID file.
func (l *PIDLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	// EPERM means the process exists but belongs to someone else.
	return err == nil || errors.Is(err, syscall.EPERM)
}
