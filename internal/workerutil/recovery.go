// Package workerutil supervises a background goroutine that must not take
// the rest of the process down with it. cmd/hotwatch's filesystem-event
// loop and session's local-run goroutine both run for the lifetime of
// their process; an unhandled panic in either would otherwise kill the
// watcher (and with it, the rebuild loop) or silently abandon a same-
// process reloadable run with no indication anything went wrong.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Backoff bounds for restarting a panicked worker: doubling from 100ms up
// to a 5s cap, independent of buildrunner's output-busy retry constants —
// a worker panic and a locked build binary are unrelated failure modes
// with no reason to share a backoff schedule.
const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRestarts    = 10
)

// Options configures Supervise. The zero value uses defaultInitialBackoff,
// defaultMaxBackoff and defaultMaxRestarts.
type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxRestarts bounds how many times fn is run in total, counting the
	// first run, so fn is restarted at most MaxRestarts-1 times after a
	// panic. Set to 1 to recover a panic without ever restarting fn — session's
	// local-run goroutine does this, since restarting a reloadable's
	// entry point mid-process would re-run its one-time schema binding.
	MaxRestarts int

	// IsShutdown, if non-nil, is polled after each panic; once it returns
	// true the loop stops without counting the panic against MaxRestarts
	// or waiting out the backoff.
	IsShutdown func() bool
}

func (o Options) withDefaults() Options {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.MaxRestarts <= 0 {
		o.MaxRestarts = defaultMaxRestarts
	}
	return o
}

// Supervise runs fn on a new goroutine tracked by wg, recovering from any
// panic and restarting fn with exponential backoff until one of: fn
// returns normally, ctx is canceled, opts.IsShutdown reports true, or
// opts.MaxRestarts panics have been recovered.
func Supervise(ctx context.Context, name string, wg *sync.WaitGroup, fn func(ctx context.Context), opts Options) {
	opts = opts.withDefaults()
	wg.Add(1)
	go func() {
		defer wg.Done()
		superviseLoop(ctx, name, fn, opts)
	}()
}

func superviseLoop(ctx context.Context, name string, fn func(ctx context.Context), opts Options) {
	backoff := opts.InitialBackoff

	for attempt := 0; attempt < opts.MaxRestarts; attempt++ {
		if !runRecovered(ctx, name, fn) {
			return // fn returned normally
		}
		if ctx.Err() != nil {
			return
		}
		if opts.IsShutdown != nil && opts.IsShutdown() {
			slog.Info("[workerutil] shutdown observed after panic, not restarting", "worker", name)
			return
		}
		if attempt == opts.MaxRestarts-1 {
			break
		}

		slog.Warn("[workerutil] restarting worker after panic",
			"worker", name, "attempt", attempt+1, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = nextBackoff(backoff, opts.MaxBackoff)
	}

	slog.Error("[workerutil] worker exhausted restart attempts, giving up",
		"worker", name, "maxRestarts", opts.MaxRestarts)
}

// runRecovered runs fn once, recovering any panic and logging it with a
// stack trace. It reports whether fn panicked.
func runRecovered(ctx context.Context, name string, fn func(ctx context.Context)) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[workerutil] worker panicked",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
			panicked = true
		}
	}()
	fn(ctx)
	return false
}

// nextBackoff doubles current, capped at max. Guards the int64 overflow
// that doubling a near-MaxInt64 duration would otherwise produce.
func nextBackoff(current, max time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	if current >= max {
		return max
	}
	doubled := current * 2
	if doubled > max || doubled < current {
		return max
	}
	return doubled
}
