//go:build !windows

package system

import (
	"log/slog"
	"syscall"
)

// InitResourceLimits raises the open-file limit so high-volume batch
// runs don't exhaust descriptors on rendering and audit I/O.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		slog.Warn("could not read file limit", "error", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		slog.Warn("could not raise file limit", "error", err)
	}
}
