//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pagestore

import (
	"golang.org/x/sys/unix"

	"github.com/hupe1980/gomam/internal/fs"
)

type fder interface {
	Fd() uintptr
}

// lockFile takes an exclusive advisory lock so that a single process owns the file.
// Files without a descriptor (test doubles) are not locked.
func lockFile(f fs.File) (func() error, error) {
	d, ok := f.(fder)
	if !ok {
		return func() error { return nil }, nil
	}
	fd := int(d.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return nil, err
	}
	return func() error { return unix.Flock(fd, unix.LOCK_UN) }, nil
}
