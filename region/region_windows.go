//go:build windows

package region

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// winObjectName turns a "/prefix+field" identifier into a legal Win32
// kernel-object name: backslashes are not allowed in the identifier by
// construction (see internal/fieldname), so only the leading "/" needs
// folding away. The Global\ namespace matches the convention already used
// by the teacher's named-mutex code.
func winObjectName(identifier string) string {
	return `Global\hotreload-shm-` + identifier[1:]
}

type windowsRegion struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

func (r *windowsRegion) bytes() []byte { return r.data }

func (r *windowsRegion) close(unlink bool) error {
	var firstErr error
	if r.addr != 0 {
		if err := windows.UnmapViewOfFile(r.addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unmap: %w", err)
		}
		r.addr = 0
	}
	if r.handle != 0 {
		if err := windows.CloseHandle(r.handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close handle: %w", err)
		}
		r.handle = 0
	}
	// Windows file mappings have no separate "unlink" step: the kernel
	// object is reclaimed once every handle to it is closed, which is what
	// the force-create-on-create step below relies on (a prior unclean
	// exit leaves no name behind to collide with).
	_ = unlink
	return firstErr
}

func createImpl(identifier string, size uintptr) (regionImpl, error) {
	name := winObjectName(identifier)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid region name %q: %w", name, err)
	}

	handle, err := windows.CreateFileMapping(
		windows.InvalidHandle,
		nil,
		windows.PAGE_READWRITE,
		uint32(uint64(size)>>32),
		uint32(uint64(size)&0xffffffff),
		namePtr,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateFileMapping %s: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, size)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("MapViewOfFile %s: %w", name, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range data {
		data[i] = 0
	}
	return &windowsRegion{handle: handle, addr: addr, data: data}, nil
}

func openImpl(identifier string) (regionImpl, uintptr, error) {
	name := winObjectName(identifier)
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid region name %q: %w", name, err)
	}

	handle, err := windows.OpenFileMapping(windows.FILE_MAP_WRITE, false, namePtr)
	if err != nil {
		return nil, 0, fmt.Errorf("OpenFileMapping %s: %w", name, err)
	}

	// Windows has no direct "query mapping size" API. The whole mapping is
	// viewed (size 0, valid because CreateFileMapping established its size)
	// and the view's extent is then read back with VirtualQuery, which
	// reports it rounded up to whole pages.
	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, 0, fmt.Errorf("MapViewOfFile %s: %w", name, err)
	}

	var info windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(handle)
		return nil, 0, fmt.Errorf("VirtualQuery %s: %w", name, err)
	}
	size := uintptr(info.RegionSize)

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &windowsRegion{handle: handle, addr: addr, data: data}, size, nil
}
