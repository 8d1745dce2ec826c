//go:build !unix

package channel

import "hotreload/xsync"

// recvBlocking implements spec.md §4.4's non-POSIX recv path: no SIGTERM
// concept, so a plain blocking wait precedes a try_recv that is required to
// succeed.
func (c *SharedChannel[T]) recvBlocking() T {
	c.event.Wait(xsync.Infinite)
	value, ok := c.TryRecv()
	if !ok {
		panic("channel: Recv woke but TryRecv returned no value")
	}
	return value
}
