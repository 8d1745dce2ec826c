//go:build !windows

package region

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// shmDir is where POSIX shared-memory objects actually live on Linux; this
// mirrors what shm_open(3) does under the hood, without requiring cgo to
// call it directly.
const shmDir = "/dev/shm"

func shmPath(identifier string) string {
	// identifier always starts with "/" (spec.md §3); join directly so the
	// result is /dev/shm/<rest-of-identifier>.
	return shmDir + identifier
}

type unixRegion struct {
	path string
	data []byte
}

func (r *unixRegion) bytes() []byte { return r.data }

func (r *unixRegion) close(unlink bool) error {
	var errs []error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
		r.data = nil
	}
	if unlink {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("unlink %s: %w", r.path, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func createImpl(identifier string, size uintptr) (regionImpl, error) {
	path := shmPath(identifier)

	// Force-create: clear any stale name left by a prior unclean exit
	// (spec.md §4.1, §8). Ignore errors; the O_CREATE below will surface
	// any real problem.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("[region] stale shared-memory name could not be removed before create", "path", path, "error", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate %s to %d: %w", path, size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &unixRegion{path: path, data: data}, nil
}

func openImpl(identifier string) (regionImpl, uintptr, error) {
	path := shmPath(identifier)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size <= 0 {
		return nil, 0, fmt.Errorf("region %s has invalid size %d", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &unixRegion{path: path, data: data}, uintptr(size), nil
}
