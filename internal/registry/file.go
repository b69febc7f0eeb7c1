package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/dbforge/internal/fsutil"
)

// File is the JSON document backend.
//
// The read-modify-write in Reserve runs under an exclusive advisory lock on
// "<path>.lock", so concurrent processes on the same host serialize. The
// document itself is replaced atomically.
type File struct {
	path string
}

// NewFile returns a File backend for path. The file is created lazily.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the document path.
func (f *File) Path() string { return f.path }

// Reserve claims the next serial.
func (f *File) Reserve(ctx context.Context, info RunInfo) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return Reservation{}, fmt.Errorf("create registry directory: %w", err)
	}

	unlock, err := acquireLock(f.path + ".lock")
	if err != nil {
		return Reservation{}, fmt.Errorf("lock registry: %w", err)
	}
	defer unlock()

	doc, err := f.load()
	if err != nil {
		return Reservation{}, err
	}

	serial := doc.NextRunSerial
	doc.NextRunSerial = serial + 1
	doc.LastRun = &LastRun{Serial: serial, Seed: info.Seed, Count: info.Count, Output: info.Output}

	if err := f.save(doc); err != nil {
		return Reservation{}, err
	}
	return Reservation{Serial: serial, Namespace: Namespace(serial)}, nil
}

// Snapshot reads the current document. A missing file reads as a fresh registry.
func (f *File) Snapshot(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	return f.load()
}

// Close is a no-op; File holds no open handles between calls.
func (f *File) Close() error { return nil }

func (f *File) load() (Document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read registry: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, &CorruptError{Path: f.path, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, &CorruptError{Path: f.path, Err: err}
	}
	return doc, nil
}

// save replaces the document atomically.
func (f *File) save(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFile(f.path, data, fsutil.ModeOr(f.path, 0644)); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
