// Package supervisor is the Owner-side half of spec.md §4.6: it spawns the
// external watcher tool that rebuilds and restarts the Reloadable binary on
// every source change, and holds the watcher's Child handle so Session can
// kill it on Close.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// ErrSpawnFailed is returned by Start when the watcher process could not be
// spawned. Compare with errors.Is.
var ErrSpawnFailed = errors.New("supervisor: spawn failed")

// Supervisor wraps the spawned watcher process.
type Supervisor struct {
	cmd *exec.Cmd
}

// Start spawns watcherPath (this framework's own watcher binary, cmd/
// hotwatch) with the CLI contract spec §6 describes for any consumer of
// this framework: project identifier, "--" separator, id_prefix,
// serialized args blob. Start does not wait for the watcher to exit; the
// returned Supervisor's Kill method is what Session.Close calls.
func Start(watcherPath, projectName, idPrefix, argsBlob string) (*Supervisor, error) {
	cmd := exec.Command(watcherPath, projectName, "--", idPrefix, argsBlob)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, watcherPath, err)
	}
	return &Supervisor{cmd: cmd}, nil
}

// Kill terminates the watcher. Per spec §4.5, kill errors are the caller's
// to ignore — the watcher (and its current child) may already be gone.
func (s *Supervisor) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}

// Wait blocks until the watcher process exits. Callers that don't care
// about reaping it (the common case — Session.Close just kills it) can
// ignore this.
func (s *Supervisor) Wait() error {
	return s.cmd.Wait()
}

// Pid reports the watcher's process id, for logging.
func (s *Supervisor) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
