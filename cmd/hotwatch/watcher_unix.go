//go:build unix

package main

import (
	"os/exec"
	"syscall"
)

// signalChild sends SIGTERM so the reloadable child can abort its blocking
// channel Recv per spec §5, rather than being killed outright.
func signalChild(cmd *exec.Cmd) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
	}
}
