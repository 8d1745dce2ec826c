//go:build !unix

package main

import "os/exec"

// signalChild has no portable SIGTERM-equivalent on Windows process
// handles reachable from os/exec, so the child is killed outright; the
// channel package's Windows Recv path (channel_other.go) doesn't rely on
// a termination signal to unblock.
func signalChild(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}
