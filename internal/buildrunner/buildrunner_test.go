package buildrunner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"hotreload/internal/testutil"
)

var errBuildFailed = errors.New("exit status 1")

func TestIsOutputBusy(t *testing.T) {
	tests := []struct {
		name   string
		errMsg string
		want   bool
	}{
		{"linux text file busy", "fork/exec ./app: text file busy", true},
		{"windows access denied", "open app.exe: Access is denied.", true},
		{"windows permission denied", "rename app.exe.tmp app.exe: Permission denied", true},
		{"unrelated compile error", "./main.go:10:2: undefined: foo", false},
		{"empty string", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOutputBusy(tt.errMsg); got != tt.want {
				t.Errorf("isOutputBusy(%q) = %v, want %v", tt.errMsg, got, tt.want)
			}
		})
	}
}

func TestRunRetriesOnOutputBusyThenSucceeds(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, dir string, args []string, env []string) ([]byte, string, error) {
		calls++
		if calls < 3 {
			return nil, "text file busy", errBuildFailed
		}
		return []byte("ok"), "", nil
	}
	waits := 0
	waiter := func(ctx context.Context, backoff time.Duration) error {
		waits++
		return nil
	}

	out, err := runWithContextAndDeps(context.Background(), ".", []string{"go", "build"}, nil, runner, waiter)
	if err != nil {
		t.Fatalf("runWithContextAndDeps: %v", err)
	}
	if string(out) != "ok" {
		t.Errorf("out = %q, want \"ok\"", out)
	}
	if calls != 3 {
		t.Errorf("runner called %d times, want 3", calls)
	}
	if waits != 2 {
		t.Errorf("waiter called %d times, want 2", waits)
	}
}

func TestRunFailsImmediatelyOnNonBusyError(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, dir string, args []string, env []string) ([]byte, string, error) {
		calls++
		return nil, "undefined: foo", errBuildFailed
	}
	if _, err := runWithContextAndDeps(context.Background(), ".", []string{"go", "build"}, nil, runner, nil); err == nil {
		t.Fatal("want error for non-retryable failure")
	}
	if calls != 1 {
		t.Errorf("runner called %d times, want 1 (no retry on real compile error)", calls)
	}
}

func TestRunExhaustsRetriesOnPersistentBusy(t *testing.T) {
	calls := 0
	runner := func(ctx context.Context, dir string, args []string, env []string) ([]byte, string, error) {
		calls++
		return nil, "text file busy", errBuildFailed
	}
	waiter := func(ctx context.Context, backoff time.Duration) error { return nil }

	logBuf := testutil.CaptureLogBuffer(t, slog.LevelWarn)

	if _, err := runWithContextAndDeps(context.Background(), ".", []string{"go", "build"}, nil, runner, waiter); err == nil {
		t.Fatal("want error after exhausting retries")
	}
	if calls != maxRetries {
		t.Errorf("runner called %d times, want %d", calls, maxRetries)
	}
	if !strings.Contains(logBuf.String(), "output-busy retries exhausted") {
		t.Errorf("log output = %q, want a retries-exhausted warning", logBuf.String())
	}
}
