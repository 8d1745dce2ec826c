package supervisor

import (
	"testing"
	"time"
)

func TestStartAndKill(t *testing.T) {
	sup, err := Start("sleep", "demo-project", "/hrsuptest", "args: blob")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sup.Pid() == 0 {
		t.Error("Pid() = 0, want nonzero after Start")
	}
	if err := sup.Kill(); err != nil {
		t.Errorf("Kill: %v", err)
	}
	sup.Wait()
}

func TestStartInvalidPathReturnsSpawnError(t *testing.T) {
	if _, err := Start("/no/such/watcher-binary", "demo-project", "/hrsuptest", ""); err == nil {
		t.Fatal("Start with invalid path: want error")
	}
}

func TestStartDoesNotWaitForExit(t *testing.T) {
	start := time.Now()
	sup, err := Start("sleep", "demo-project", "/hrsuptest", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Start blocked for %v, want near-instant return", elapsed)
	}
	sup.Kill()
	sup.Wait()
}
