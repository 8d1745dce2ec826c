// Package channel implements SharedChannel[T]: a one-slot, cross-process,
// typed signalling channel built out of an event, a mutex, and a raw
// payload cell, all living inside one NamedRegion.
//
// Layout: [Event header | Mutex header | presence flag | T payload],
// offsets derived from each header's reported size (xsync.EventHeaderSize,
// xsync.MutexHeaderSize), never hardcoded. Exactly one sender and one
// receiver are supported at a time; a second concurrent Recv panics rather
// than racing the first (see channel_test.go).
package channel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"hotreload/region"
	"hotreload/xsync"
)

// SharedChannel is a capacity-1, overwrite-on-send signalling channel
// shared between exactly one Owner process and one Reloadable process.
type SharedChannel[T any] struct {
	backing      *region.NamedRegion
	mutex        *xsync.Mutex
	event        *xsync.Event
	presence     *int32
	valuePtr     *T
	recvInFlight atomic.Bool
	handshake    sync.Once
}

// handshakeObserverMu guards handshakeObserverFn, the optional callback
// notified the first time this process completes a Send or TryRecv on a
// given SharedChannel. A process that wants these surfaced (internal/
// statushub, or any other lifecycle sink) registers one with
// SetHandshakeObserver; this package never imports statushub itself, the
// same decoupling session uses to avoid importing supervisor.
var (
	handshakeObserverMu sync.RWMutex
	handshakeObserverFn func(identifier string)
)

// SetHandshakeObserver installs fn to be called, at most once per
// SharedChannel, the first time this process's side of that channel
// completes a Send or a successful TryRecv — the first proof that this
// side of the channel is actually moving data. Passing nil clears it.
func SetHandshakeObserver(fn func(identifier string)) {
	handshakeObserverMu.Lock()
	handshakeObserverFn = fn
	handshakeObserverMu.Unlock()
}

func (c *SharedChannel[T]) noteHandshake() {
	c.handshake.Do(func() {
		handshakeObserverMu.RLock()
		fn := handshakeObserverFn
		handshakeObserverMu.RUnlock()
		if fn != nil {
			fn(c.Identifier())
		}
	})
}

func alignOffset(addr, align uintptr) uintptr {
	if align <= 1 {
		return 0
	}
	if rem := addr % align; rem != 0 {
		return align - rem
	}
	return 0
}

// New constructs a SharedChannel[T] backed by a NamedRegion with the given
// identifier: created if isOwner, opened otherwise. Both sides must agree
// on T and identifier; the schema package guarantees this by construction.
func New[T any](isOwner bool, identifier string) (*SharedChannel[T], error) {
	eventSize := xsync.EventHeaderSize()
	mutexOffset := eventSize
	mutexSize := xsync.MutexHeaderSize()
	presenceOffset := mutexOffset + mutexSize
	const presenceSize = uintptr(4)

	var zero T
	valAlign := uintptr(unsafe.Alignof(zero))
	valSize := unsafe.Sizeof(zero)
	// Headroom for re-aligning the value once the real mapping address is
	// known, same reasoning as typed.Value.
	allocSize := presenceOffset + presenceSize + valSize + valAlign

	backing, err := attach(isOwner, identifier, allocSize)
	if err != nil {
		return nil, err
	}
	buf := backing.Bytes()

	event, err := xsync.CreateOrOpenEvent(isOwner, identifier, buf, 0, true)
	if err != nil {
		backing.Close()
		return nil, fmt.Errorf("channel: event: %w", err)
	}
	mutex, err := xsync.CreateOrOpenMutex(isOwner, identifier, buf, mutexOffset)
	if err != nil {
		backing.Close()
		return nil, fmt.Errorf("channel: mutex: %w", err)
	}

	base := unsafe.Pointer(unsafe.SliceData(buf))
	presence := (*int32)(unsafe.Add(base, presenceOffset))

	valueBase := presenceOffset + presenceSize
	valueOffset := valueBase + alignOffset(uintptr(base)+valueBase, valAlign)
	if valueOffset+valSize > uintptr(len(buf)) {
		backing.Close()
		return nil, fmt.Errorf("channel: region %q too small for aligned payload (need %d, have %d)",
			identifier, valueOffset+valSize, len(buf))
	}
	valuePtr := (*T)(unsafe.Add(base, valueOffset))

	return &SharedChannel[T]{
		backing:  backing,
		mutex:    mutex,
		event:    event,
		presence: presence,
		valuePtr: valuePtr,
	}, nil
}

func attach(isOwner bool, identifier string, size uintptr) (*region.NamedRegion, error) {
	if isOwner {
		return region.Create(identifier, size)
	}
	return region.Open(identifier)
}

// Send writes value into the single slot, overwriting any unread prior
// value, and wakes a blocked receiver. Never blocks (the mutex is only ever
// held for the duration of a memory copy).
func (c *SharedChannel[T]) Send(value T) {
	c.mutex.Lock()
	*c.valuePtr = value
	atomic.StoreInt32(c.presence, 1)
	c.mutex.Unlock()
	c.event.Set(xsync.Signaled)
	c.noteHandshake()
}

// TryRecv returns the pending value without blocking. ok is false if no
// value is currently present.
func (c *SharedChannel[T]) TryRecv() (value T, ok bool) {
	c.mutex.Lock()
	if atomic.LoadInt32(c.presence) == 0 {
		c.mutex.Unlock()
		return value, false
	}
	value = *c.valuePtr
	atomic.StoreInt32(c.presence, 0)
	c.event.Set(xsync.Clear)
	c.mutex.Unlock()
	c.noteHandshake()
	return value, true
}

// Recv blocks until a value is available and returns it. Only one Recv may
// be in flight at a time; a second concurrent call panics rather than
// racing the first, since the underlying event supports a single waiter
// (spec.md §4.3's manual_reset rationale).
func (c *SharedChannel[T]) Recv() T {
	if !c.recvInFlight.CompareAndSwap(false, true) {
		panic("channel: concurrent Recv unsupported")
	}
	defer c.recvInFlight.Store(false)
	return c.recvBlocking()
}

// Identifier returns the backing region's OS object name.
func (c *SharedChannel[T]) Identifier() string { return c.backing.Identifier() }

// Close releases the backing region.
func (c *SharedChannel[T]) Close() error { return c.backing.Close() }
