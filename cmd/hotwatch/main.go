// Command hotwatch is the external "watcher" tool referenced by spec §4.6
// and §6: it rebuilds a Reloadable binary on source change and restarts it
// with the same CLI arguments, forwarding shutdown signals to the current
// child. supervisor.Start spawns it as:
//
//	hotwatch <project_dir> -- <id_prefix> <serialized_args> [app args...]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"hotreload/internal/config"
	"hotreload/internal/statushub"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[hotwatch] fatal panic", "panic", r, "stack", string(debug.Stack()))
			os.Exit(1)
		}
	}()

	if err := run(); err != nil {
		slog.Error("[hotwatch] exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	sourceDir, childArgs, err := parseArgs(os.Args)
	if err != nil {
		return err
	}

	cfgPath := os.Getenv("HOTWATCH_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.EnsureFile(cfgPath)
	if err != nil {
		slog.Warn("[hotwatch] failed to load config, using defaults", "path", cfgPath, "error", err)
		cfg = config.DefaultConfig()
	}
	installLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := statushub.NewHub(statushub.HubOptions{Addr: cfg.StatusHubAddr})
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start status hub: %w", err)
	}
	defer hub.Stop()
	slog.Info("[hotwatch] status hub listening", "url", hub.URL())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		slog.Info("[hotwatch] received shutdown signal")
		cancel()
	}()

	outputPath := filepath.Join(os.TempDir(), fmt.Sprintf("hotwatch-build-%d", os.Getpid()))
	w := newWatcher(cfg, hub, sourceDir, outputPath, childArgs)
	return w.run(ctx)
}

// parseArgs splits argv into the source directory to watch/build and the
// arguments forwarded verbatim to every (re)spawned child, per the CLI
// contract supervisor.Start uses to invoke this binary.
func parseArgs(argv []string) (sourceDir string, childArgs []string, err error) {
	if len(argv) < 5 || argv[2] != "--" {
		return "", nil, fmt.Errorf("usage: %s <project_dir> -- <id_prefix> <serialized_args> [app args...]", filepath.Base(argv[0]))
	}
	return argv[1], argv[3:], nil
}

func installLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
