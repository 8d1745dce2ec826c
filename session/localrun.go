package session

import (
	"context"
	"sync"

	"hotreload/internal/workerutil"
)

// Go has no thread-local storage; this package-level slot, guarded by a
// mutex, stands in for the thread-local slots spec §4.7's local-run mode
// passes id_prefix and serialized args through. RunLocal stages the slot
// and starts the reloadable entry point on a goroutine instead of a
// separate OS process; NewReloadable (and schema's reloadable()
// constructor, for the args blob) consult it before falling back to argv.
var (
	localRunMu   sync.Mutex
	localRunData struct {
		idPrefix string
		argsBlob string
		active   bool
	}
)

// RunLocal starts fn — expected to be a reloadable binary's entry point —
// on a background goroutine in the current process, with idPrefix and
// argsBlob available to it via NewReloadable / localRunArgs instead of
// argv. It returns immediately; fn runs concurrently with the caller.
//
// The goroutine runs under workerutil's panic recovery with MaxRestarts=1:
// a panic is recovered and logged rather than crashing the owner process
// that embedded the reloadable in-process, but fn is never restarted — a
// reloadable's entry point does one-time schema binding, and re-running it
// after a partial first run would rebind an already-bound region.
func RunLocal(idPrefix, argsBlob string, fn func()) {
	localRunMu.Lock()
	localRunData.idPrefix = idPrefix
	localRunData.argsBlob = argsBlob
	localRunData.active = true
	localRunMu.Unlock()

	var wg sync.WaitGroup
	workerutil.Supervise(context.Background(), "session-local-run", &wg, func(context.Context) {
		fn()
	}, workerutil.Options{MaxRestarts: 1})

	go func() {
		wg.Wait()
		localRunMu.Lock()
		localRunData.active = false
		localRunMu.Unlock()
	}()
}

// localRunArgs returns the staged local-run id_prefix/args blob, if
// RunLocal has been called and its goroutine hasn't finished.
func localRunArgs() (idPrefix, argsBlob string, ok bool) {
	localRunMu.Lock()
	defer localRunMu.Unlock()
	if !localRunData.active {
		return "", "", false
	}
	return localRunData.idPrefix, localRunData.argsBlob, true
}

// LocalRunArgsBlob exposes the staged args blob for schema's reloadable()
// constructor, which (unlike Session.NewReloadable) needs the args half of
// the slot too.
func LocalRunArgsBlob() (argsBlob string, ok bool) {
	_, argsBlob, ok = localRunArgs()
	return argsBlob, ok
}
