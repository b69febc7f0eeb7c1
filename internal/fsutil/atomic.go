// Package fsutil holds the file helpers shared by the writers: atomic
// replacement through a temp file and a plain copy.
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicFile is a temp file that replaces path on Commit.
// It lives in the destination directory so the rename never crosses
// filesystems. Readers of path see either the old or the new content.
type AtomicFile struct {
	f    *os.File
	path string
	done bool
}

// CreateAtomic starts an atomic write of path. The parent directory must
// exist. Call Commit to publish or Abort to discard; Abort after Commit is a
// no-op, so it can be deferred.
func CreateAtomic(path string) (*AtomicFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &AtomicFile{f: f, path: path}, nil
}

// Write implements io.Writer.
func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

// TempName returns the path of the temp file.
func (a *AtomicFile) TempName() string {
	return a.f.Name()
}

// Commit syncs the temp file, sets its permissions and renames it over path.
func (a *AtomicFile) Commit(mode fs.FileMode) error {
	if a.done {
		return fmt.Errorf("atomic write of %s already finished", a.path)
	}
	if err := a.f.Chmod(mode); err != nil {
		a.Abort()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := a.f.Sync(); err != nil {
		a.Abort()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := a.f.Close(); err != nil {
		a.done = true
		_ = os.Remove(a.f.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	a.done = true
	if err := os.Rename(a.f.Name(), a.path); err != nil {
		_ = os.Remove(a.f.Name()) // Clean up temp file on failure
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Abort discards the temp file.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.f.Close()
	_ = os.Remove(a.f.Name())
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, mode fs.FileMode) error {
	a, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := a.Write(data); err != nil {
		a.Abort()
		return fmt.Errorf("write temp file: %w", err)
	}
	return a.Commit(mode)
}

// CopyFile copies src to dst, truncating dst.
func CopyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ModeOr returns the permission bits of path, or def when it does not exist.
func ModeOr(path string, def fs.FileMode) fs.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return def
	}
	return info.Mode().Perm()
}
