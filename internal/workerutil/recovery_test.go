package workerutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSuperviseNormalExitDoesNotRestart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var calls atomic.Int32

	Supervise(ctx, "normal-exit", &wg, func(context.Context) {
		calls.Add(1)
	}, Options{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	wg.Wait()
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1 (no restart on normal return)", got)
	}
}

func TestSuperviseRestartsOncePanicked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var calls atomic.Int32

	Supervise(ctx, "single-panic", &wg, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, Options{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxRestarts: 5})

	wg.Wait()
	if got := calls.Load(); got != 2 {
		t.Errorf("fn called %d times, want 2 (1 panic + 1 successful restart)", got)
	}
}

func TestSuperviseGivesUpAfterMaxRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var calls atomic.Int32

	const maxRestarts = 3
	Supervise(ctx, "always-panics", &wg, func(context.Context) {
		calls.Add(1)
		panic("always")
	}, Options{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, MaxRestarts: maxRestarts})

	wg.Wait()
	if got := calls.Load(); got != maxRestarts {
		t.Errorf("fn called %d times, want %d", got, maxRestarts)
	}
}

func TestSuperviseMaxRestartsOneNeverRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var calls atomic.Int32

	Supervise(ctx, "no-restart", &wg, func(context.Context) {
		calls.Add(1)
		panic("boom")
	}, Options{MaxRestarts: 1})

	wg.Wait()
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1 (MaxRestarts=1 means recover-only)", got)
	}
}

func TestSuperviseStopsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	var calls atomic.Int32

	Supervise(ctx, "shutdown-aware", &wg, func(context.Context) {
		calls.Add(1)
		panic("boom")
	}, Options{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		MaxRestarts:    10,
		IsShutdown:     func() bool { return true },
	})

	wg.Wait()
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1 (IsShutdown prevents any restart)", got)
	}
}

func TestSuperviseExitsPromptlyOnContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var calls atomic.Int32

	Supervise(ctx, "cancel-during-backoff", &wg, func(context.Context) {
		calls.Add(1)
		panic("boom")
	}, Options{InitialBackoff: 10 * time.Second, MaxBackoff: 10 * time.Second, MaxRestarts: 5})

	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not exit promptly after context cancel during backoff")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name       string
		current    time.Duration
		maxBackoff time.Duration
		want       time.Duration
	}{
		{"zero uses default initial", 0, 5 * time.Second, defaultInitialBackoff},
		{"negative uses default initial", -time.Second, 5 * time.Second, defaultInitialBackoff},
		{"doubles under cap", 200 * time.Millisecond, 5 * time.Second, 400 * time.Millisecond},
		{"caps at max", 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"caps when doubling exceeds max", 3 * time.Second, 5 * time.Second, 5 * time.Second},
		{"overflow guard", time.Duration(1 << 62), time.Duration(1<<63 - 1), time.Duration(1<<63 - 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.current, tt.maxBackoff); got != tt.want {
				t.Errorf("nextBackoff(%s, %s) = %s, want %s", tt.current, tt.maxBackoff, got, tt.want)
			}
		})
	}
}
