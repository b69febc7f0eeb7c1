//go:build !unix && !windows

package registry

// acquireLock is a no-op where no advisory locking primitive is available.
func acquireLock(string) (func(), error) {
	return func() {}, nil
}
