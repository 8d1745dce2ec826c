//go:build linux

package xsync

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Futex operation numbers and flags, per linux/include/uapi/linux/futex.h.
// golang.org/x/sys/unix does not expose a high-level futex wrapper, so the
// raw syscall is issued directly here, the same way the Go runtime's own
// lock_futex.go talks to the kernel.
const (
	futexWaitOp    = 0
	futexWakeOp    = 1
	mutexUnlocked  = int32(0)
	mutexLocked    = int32(1)
	mutexContended = int32(2)
)

func mutexHeaderSize() uintptr { return 4 }
func eventHeaderSize() uintptr { return 4 }

func wordAt(buf []byte, offset uintptr) *int32 {
	return (*int32)(unsafe.Pointer(&buf[offset]))
}

func futexWait(word *int32, expected int32, timeout time.Duration) {
	var tsPtr *unix.Timespec
	var ts unix.Timespec
	if timeout >= 0 {
		ts = unix.NsecToTimespec(timeout.Nanoseconds())
		tsPtr = &ts
	}
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexWaitOp),
		uintptr(expected),
		uintptr(unsafe.Pointer(tsPtr)),
		0, 0,
	)
	// Errors (EAGAIN, ETIMEDOUT, EINTR) all just mean "recheck the word and
	// decide whether to loop again"; the caller already does that.
}

func futexWake(word *int32, n int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(word)),
		uintptr(futexWakeOp),
		uintptr(n),
		0, 0, 0,
	)
}

// futexMutex implements the classic three-state futex mutex (Drepper,
// "Futexes Are Tricky", §Mutex2): 0 unlocked, 1 locked/uncontended, 2
// locked/contended. A contended unlock wakes exactly one waiter.
type futexMutex struct {
	word *int32
}

func createMutexImpl(_ string, buf []byte, offset uintptr) (mutexImpl, error) {
	w := wordAt(buf, offset)
	atomic.StoreInt32(w, mutexUnlocked)
	return &futexMutex{word: w}, nil
}

func openMutexImpl(_ string, buf []byte, offset uintptr) (mutexImpl, error) {
	return &futexMutex{word: wordAt(buf, offset)}, nil
}

func (m *futexMutex) Lock() {
	if atomic.CompareAndSwapInt32(m.word, mutexUnlocked, mutexLocked) {
		return
	}
	for atomic.SwapInt32(m.word, mutexContended) != mutexUnlocked {
		futexWait(m.word, mutexContended, Infinite)
	}
}

func (m *futexMutex) Unlock() {
	if atomic.SwapInt32(m.word, mutexUnlocked) == mutexContended {
		futexWake(m.word, 1)
	}
}

// futexEvent implements a manual- or auto-reset event on top of a single
// futex word holding an EventState.
type futexEvent struct {
	word        *int32
	manualReset bool
}

func createEventImpl(_ string, buf []byte, offset uintptr, manualReset bool) (eventImpl, error) {
	w := wordAt(buf, offset)
	atomic.StoreInt32(w, int32(Clear))
	return &futexEvent{word: w, manualReset: manualReset}, nil
}

func openEventImpl(_ string, buf []byte, offset uintptr, manualReset bool) (eventImpl, error) {
	return &futexEvent{word: wordAt(buf, offset), manualReset: manualReset}, nil
}

func (e *futexEvent) Set(state EventState) {
	atomic.StoreInt32(e.word, int32(state))
	if state == Signaled {
		futexWake(e.word, 1<<30) // wake all current waiters
	}
}

func (e *futexEvent) Wait(timeout time.Duration) EventState {
	deadline := deadlineFor(timeout)
	for {
		if state := EventState(atomic.LoadInt32(e.word)); state == Signaled {
			if !e.manualReset {
				atomic.CompareAndSwapInt32(e.word, int32(Signaled), int32(Clear))
			}
			return Signaled
		}
		remaining, ok := remainingUntil(deadline, timeout)
		if !ok {
			return EventState(atomic.LoadInt32(e.word))
		}
		futexWait(e.word, int32(Clear), remaining)
	}
}

func (e *futexEvent) WaitAllowSpurious(timeout time.Duration) EventState {
	if state := EventState(atomic.LoadInt32(e.word)); state == Signaled {
		return Signaled
	}
	futexWait(e.word, int32(Clear), timeout)
	state := EventState(atomic.LoadInt32(e.word))
	if state == Signaled && !e.manualReset {
		atomic.CompareAndSwapInt32(e.word, int32(Signaled), int32(Clear))
	}
	return state
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func remainingUntil(deadline time.Time, original time.Duration) (time.Duration, bool) {
	if original < 0 {
		return Infinite, true
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
