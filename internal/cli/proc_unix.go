//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// daemonSysProcAttr detaches the daemon into its own session so it
// survives the parent terminal closing.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// terminateProcess asks the daemon to shut down gracefully.
func terminateProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
