// Package buildrunner executes "go build" for cmd/hotwatch, with bounded
// retry on the one failure mode that is genuinely transient in a
// rebuild-on-change loop: the previous binary still being executed (and
// therefore locked) by the time the next build tries to overwrite it.
package buildrunner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Retry settings for handling "output binary busy" conflicts, the build
// equivalent of the teacher's git index.lock retry: exponential backoff
// 100ms, 200ms, 400ms, ... capped at 1600ms.
const (
	maxRetries        = 10
	retryBaseInterval = 100 * time.Millisecond
	retryMaxInterval  = 1600 * time.Millisecond
	// Maximum number of concurrent builds. The watcher only ever has one
	// rebuild in flight at a time in practice, but a burst of fsnotify
	// events arriving while a build is already running must not pile up
	// unbounded `go build` invocations.
	maxConcurrentBuilds = 2
	semaphoreAcquireTimeout = 30 * time.Second
)

type commandRunner func(ctx context.Context, dir string, args []string, env []string) (stdout []byte, stderr string, err error)
type retryWaiter func(ctx context.Context, backoff time.Duration) error

var buildSemaphore = make(chan struct{}, maxConcurrentBuilds)

func acquireSemaphoreWithContext(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("buildrunner: semaphore acquisition canceled: %w", err)
	}
	timer := time.NewTimer(semaphoreAcquireTimeout)
	defer timer.Stop()

	select {
	case buildSemaphore <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("buildrunner: semaphore acquisition timed out after %v", semaphoreAcquireTimeout)
	case <-ctx.Done():
		return fmt.Errorf("buildrunner: semaphore acquisition canceled: %w", ctx.Err())
	}
}

func releaseSemaphore() {
	<-buildSemaphore
}

// isOutputBusy reports whether errMsg indicates the build's output binary
// is still locked by a previous run (Linux "text file busy" when execing
// over a running binary; Windows denies the rename/overwrite outright).
func isOutputBusy(errMsg string) bool {
	return strings.Contains(errMsg, "text file busy") ||
		strings.Contains(errMsg, "Access is denied") ||
		strings.Contains(errMsg, "Permission denied")
}

func retryBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := retryBaseInterval << uint(attempt)
	if backoff > retryMaxInterval {
		return retryMaxInterval
	}
	return backoff
}

func defaultCommandRunner(ctx context.Context, dir string, args []string, env []string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

func waitForRetryBackoff(ctx context.Context, backoff time.Duration) error {
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runWithContextAndDeps(
	ctx context.Context,
	dir string,
	args []string,
	env []string,
	runner commandRunner,
	waiter retryWaiter,
) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("buildrunner: no command specified")
	}
	if runner == nil {
		runner = defaultCommandRunner
	}
	if waiter == nil {
		waiter = waitForRetryBackoff
	}
	if err := acquireSemaphoreWithContext(ctx); err != nil {
		return nil, fmt.Errorf("buildrunner: %s: %w", args[0], err)
	}
	defer releaseSemaphore()

	var lastErrMsg string
	for attempt := range maxRetries {
		stdout, stderrText, err := runner(ctx, dir, args, env)
		if err == nil {
			return stdout, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("buildrunner: %s canceled: %w", args[0], ctxErr)
		}

		errMsg := stderrText
		if errMsg == "" {
			errMsg = err.Error()
		}
		lastErrMsg = errMsg

		if !isOutputBusy(errMsg) {
			return nil, fmt.Errorf("buildrunner: %s failed: %s", args[0], strings.TrimSpace(errMsg))
		}

		if attempt >= maxRetries-1 {
			slog.Warn("[buildrunner] output-busy retries exhausted",
				"maxRetries", maxRetries, "args", args, "dir", dir, "error", strings.TrimSpace(errMsg))
			continue
		}
		backoff := retryBackoff(attempt)
		slog.Debug("[buildrunner] output binary busy, retrying",
			"attempt", attempt+1, "maxRetries", maxRetries,
			"backoff_ms", backoff.Milliseconds(), "args", args, "dir", dir)
		if waitErr := waiter(ctx, backoff); waitErr != nil {
			return nil, fmt.Errorf("buildrunner: %s canceled during retry backoff: %w", args[0], waitErr)
		}
	}

	return nil, fmt.Errorf("buildrunner: %s failed after %d retries (output busy): %s",
		args[0], maxRetries, strings.TrimSpace(lastErrMsg))
}

// Build runs "go build -o outputPath [extraArgs...]" in sourceDir, retrying
// on a transient output-busy conflict with the previous build's binary.
func Build(ctx context.Context, sourceDir, outputPath string, extraArgs ...string) ([]byte, error) {
	args := append([]string{"go", "build", "-o", outputPath}, extraArgs...)
	return runWithContextAndDeps(ctx, sourceDir, args, os.Environ(), defaultCommandRunner, waitForRetryBackoff)
}
