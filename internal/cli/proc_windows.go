//go:build windows

package cli

import (
	"os"
	"syscall"
)

// daemonSysProcAttr detaches the daemon from the parent console.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// terminateProcess stops the daemon. Windows has no SIGTERM equivalent
// for arbitrary processes, so the daemon is killed outright.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
