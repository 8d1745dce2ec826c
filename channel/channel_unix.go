//go:build unix

package channel

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"hotreload/xsync"
)

// recvBlocking implements spec.md §4.4's POSIX recv path: install a SIGTERM
// handler for the duration of the call, loop on wait_allow_spurious, and
// abort cleanly the moment SIGTERM arrives rather than risk the wait
// outliving whatever killed the supervisor.
func (c *SharedChannel[T]) recvBlocking() T {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var terminated atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			terminated.Store(true)
			c.event.Set(xsync.Signaled) // wake the waiter below
		case <-done:
		}
	}()
	defer close(done)

	for {
		c.event.WaitAllowSpurious(xsync.Infinite)
		if terminated.Load() {
			slog.Info("channel: SIGTERM received while blocked in Recv, exiting")
			os.Exit(0)
		}
		if value, ok := c.TryRecv(); ok {
			return value
		}
	}
}
