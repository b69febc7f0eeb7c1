//go:build unix

package registry

import (
	"os"

	"golang.org/x/sys/unix"
)

// acquireLock takes an exclusive flock on path, creating it if needed.
// The returned func releases the lock and closes the file.
func acquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
