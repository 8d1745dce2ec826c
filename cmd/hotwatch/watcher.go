package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hotreload/internal/buildrunner"
	"hotreload/internal/config"
	"hotreload/internal/statushub"
	"hotreload/internal/workerutil"
)

// watcher rebuilds sourceDir into outputPath on every source change and
// keeps exactly one instance of outputPath running, restarting it with
// childArgs each time a rebuild succeeds.
type watcher struct {
	cfg        config.Config
	hub        *statushub.Hub
	sourceDir  string
	outputPath string
	childArgs  []string

	mu    sync.Mutex
	child *exec.Cmd
}

func newWatcher(cfg config.Config, hub *statushub.Hub, sourceDir, outputPath string, childArgs []string) *watcher {
	return &watcher{
		cfg:        cfg,
		hub:        hub,
		sourceDir:  sourceDir,
		outputPath: outputPath,
		childArgs:  childArgs,
	}
}

// run performs the initial build+launch, then watches sourceDir until ctx
// is canceled, rebuilding and restarting the child on every debounced burst
// of filesystem events. It never returns early on a failed rebuild — a
// broken save should not kill the watcher itself, only the pending restart.
func (w *watcher) run(ctx context.Context) error {
	if err := w.rebuildAndRestart(ctx); err != nil {
		slog.Warn("[hotwatch] initial build failed, watching for a fix", "error", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("hotwatch: create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.sourceDir); err != nil {
		return fmt.Errorf("hotwatch: watch %s: %w", w.sourceDir, err)
	}

	var wg sync.WaitGroup
	workerutil.Supervise(ctx, "hotwatch-event-loop", &wg, func(ctx context.Context) {
		w.eventLoop(ctx, fsw)
	}, workerutil.Options{
		IsShutdown: func() bool { return ctx.Err() != nil },
	})

	<-ctx.Done()
	wg.Wait()
	w.killChild()
	return nil
}

// addRecursive registers every directory under root with fsw; fsnotify
// watches are not recursive on any platform.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// eventLoop debounces bursts of filesystem events into a single rebuild:
// each relevant event restarts a cfg.RebuildDebounce timer, so the rebuild
// runs once no event has arrived for that long, and the whole burst
// collapses into one build+restart.
func (w *watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(w.cfg.RebuildDebounce)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					<-debounce.C
				}
				debounce.Reset(w.cfg.RebuildDebounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("[hotwatch] fsnotify error", "error", err)

		case <-debounceC:
			debounce = nil
			debounceC = nil
			if err := w.rebuildAndRestart(ctx); err != nil {
				slog.Warn("[hotwatch] rebuild failed, keeping previous binary running", "error", err)
			}
		}
	}
}

func (w *watcher) rebuildAndRestart(ctx context.Context) error {
	w.hub.Broadcast(statushub.Event{Type: statushub.EventRebuildStarted, Message: w.sourceDir})

	out, err := buildrunner.Build(ctx, w.sourceDir, w.outputPath)
	if err != nil {
		w.hub.Broadcast(statushub.Event{Type: statushub.EventRebuildFailed, Message: err.Error()})
		return err
	}
	if len(out) > 0 {
		slog.Debug("[hotwatch] build output", "output", string(out))
	}
	w.hub.Broadcast(statushub.Event{Type: statushub.EventRebuildSucceeded, Message: w.outputPath})

	return w.restartChild()
}

// restartChild kills the currently running child, if any, and spawns a
// fresh one from outputPath with childArgs. The watcher never waits for
// the old child to exit cleanly — a reloadable process is expected to
// abort promptly on SIGTERM per spec §5.
func (w *watcher) restartChild() error {
	w.killChild()

	cmd := exec.Command(w.outputPath, w.childArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("hotwatch: start child: %w", err)
	}

	w.mu.Lock()
	w.child = cmd
	w.mu.Unlock()

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("[hotwatch] child exited", "error", err)
		}
	}()
	return nil
}

// killChild asks the current child to shut down so it gets the chance to
// abort a blocking channel Recv per spec §5's shutdown path. The actual
// signal (SIGTERM on unix, a hard kill elsewhere) is in watcher_unix.go /
// watcher_other.go since Go's signal set isn't portable.
func (w *watcher) killChild() {
	w.mu.Lock()
	cmd := w.child
	w.child = nil
	w.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	signalChild(cmd)
}
