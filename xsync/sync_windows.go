//go:build windows

package xsync

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// On Windows both primitives are named kernel objects rather than words
// inside shared memory — Win32 already gives cross-process mutexes and
// events for free, the same way the teacher's internal/singleinstance used
// a named mutex to detect a second instance. Nothing needs to live in buf,
// so the header size is 0 and buf/offset are accepted only to satisfy the
// common signature.
func mutexHeaderSize() uintptr { return 0 }
func eventHeaderSize() uintptr { return 0 }

func winSyncName(kind, name string) string {
	n := name
	if len(n) > 0 && n[0] == '/' {
		n = n[1:]
	}
	return `Global\hotreload-` + kind + `-` + n
}

type winMutex struct {
	handle windows.Handle
}

func createMutexImpl(name string, _ []byte, _ uintptr) (mutexImpl, error) {
	full := winSyncName("mtx", name)
	namePtr, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name %q: %w", full, err)
	}
	handle, err := windows.CreateMutex(nil, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("CreateMutex %s: %w", full, err)
	}
	return &winMutex{handle: handle}, nil
}

func openMutexImpl(name string, _ []byte, _ uintptr) (mutexImpl, error) {
	full := winSyncName("mtx", name)
	namePtr, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name %q: %w", full, err)
	}
	handle, err := windows.OpenMutex(windows.MUTEX_ALL_ACCESS, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("OpenMutex %s: %w", full, err)
	}
	return &winMutex{handle: handle}, nil
}

func (m *winMutex) Lock() {
	windows.WaitForSingleObject(m.handle, windows.INFINITE)
}

func (m *winMutex) Unlock() {
	windows.ReleaseMutex(m.handle)
}

type winEvent struct {
	handle windows.Handle
}

func createEventImpl(name string, _ []byte, _ uintptr, manualReset bool) (eventImpl, error) {
	full := winSyncName("evt", name)
	namePtr, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, fmt.Errorf("invalid event name %q: %w", full, err)
	}
	handle, err := windows.CreateEvent(nil, boolToUint32(manualReset), 0, namePtr)
	if err != nil {
		return nil, fmt.Errorf("CreateEvent %s: %w", full, err)
	}
	return &winEvent{handle: handle}, nil
}

func openEventImpl(name string, _ []byte, _ uintptr, _ bool) (eventImpl, error) {
	full := winSyncName("evt", name)
	namePtr, err := windows.UTF16PtrFromString(full)
	if err != nil {
		return nil, fmt.Errorf("invalid event name %q: %w", full, err)
	}
	handle, err := windows.OpenEvent(windows.EVENT_ALL_ACCESS, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("OpenEvent %s: %w", full, err)
	}
	return &winEvent{handle: handle}, nil
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (e *winEvent) Set(state EventState) {
	if state == Signaled {
		windows.SetEvent(e.handle)
	} else {
		windows.ResetEvent(e.handle)
	}
}

func (e *winEvent) Wait(timeout time.Duration) EventState {
	ms := windowsTimeoutMillis(timeout)
	status, err := windows.WaitForSingleObject(e.handle, ms)
	if err != nil || status == uint32(windows.WAIT_TIMEOUT) {
		return Clear
	}
	return Signaled
}

func (e *winEvent) WaitAllowSpurious(timeout time.Duration) EventState {
	return e.Wait(timeout)
}

func windowsTimeoutMillis(timeout time.Duration) uint32 {
	if timeout < 0 {
		return windows.INFINITE
	}
	return uint32(timeout.Milliseconds())
}
