package readiness

import (
	"errors"
	"os"
	"syscall"
)

// DefaultIsAlive reports whether the pid refers to a live process by
// delivering the no-op signal. A permission error means the process exists
// and the caller merely lacks rights to signal it, so it counts as alive.
func DefaultIsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM) || errors.Is(err, os.ErrPermission)
}
