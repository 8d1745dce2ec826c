package xsync

import "fmt"

// MutexHeaderSize reports how many bytes of buf a mutex constructed by
// CreateMutex/OpenMutex consumes starting at its offset. It is a function
// rather than a constant because the answer is platform-specific (0 on
// Windows, where the mutex is a named kernel object rather than shared
// bytes) and both call sides must agree, which they do automatically since
// they run the same binary on the same OS.
func MutexHeaderSize() uintptr { return mutexHeaderSize() }

// CreateMutex constructs a new, initially-unlocked Mutex. name identifies
// the mutex across processes (on Windows the kernel object's name is built
// from it, minus its leading "/"; ignored on futex-backed platforms where
// buf/offset already provide identity). buf
// must have at least MutexHeaderSize() bytes available at offset.
func CreateMutex(name string, buf []byte, offset uintptr) (*Mutex, error) {
	if err := checkHeaderFits(buf, offset, mutexHeaderSize(), "mutex"); err != nil {
		return nil, err
	}
	impl, err := createMutexImpl(name, buf, offset)
	if err != nil {
		return nil, fmt.Errorf("xsync: create mutex %q: %w", name, err)
	}
	return &Mutex{impl: impl}, nil
}

// OpenMutex attaches to a Mutex previously constructed with CreateMutex,
// without reinitializing its state.
func OpenMutex(name string, buf []byte, offset uintptr) (*Mutex, error) {
	if err := checkHeaderFits(buf, offset, mutexHeaderSize(), "mutex"); err != nil {
		return nil, err
	}
	impl, err := openMutexImpl(name, buf, offset)
	if err != nil {
		return nil, fmt.Errorf("xsync: open mutex %q: %w", name, err)
	}
	return &Mutex{impl: impl}, nil
}

// CreateOrOpenMutex is CreateMutex if isOwner, OpenMutex otherwise — the
// same owner/non-owner branch every NamedRegion-backed primitive needs.
func CreateOrOpenMutex(isOwner bool, name string, buf []byte, offset uintptr) (*Mutex, error) {
	if isOwner {
		return CreateMutex(name, buf, offset)
	}
	return OpenMutex(name, buf, offset)
}

func checkHeaderFits(buf []byte, offset, size uintptr, what string) error {
	if size == 0 {
		return nil
	}
	if offset+size > uintptr(len(buf)) {
		return fmt.Errorf("xsync: %s header needs offset %d + %d bytes, buf has %d", what, offset, size, len(buf))
	}
	return nil
}
