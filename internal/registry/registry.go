package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentVersion is the current registry document version.
const DocumentVersion = 1

// ErrCorrupt marks a registry that exists but cannot be trusted.
var ErrCorrupt = errors.New("registry corrupt")

// CorruptError reports which registry is corrupt and why.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCorrupt, e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCorrupt) match.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// RunInfo is the best-effort summary stored as last_run.
type RunInfo struct {
	Seed   int64  `json:"seed"`
	Count  int64  `json:"count"`
	Output string `json:"output"`
}

// LastRun is the summary of the most recent reservation.
type LastRun struct {
	Serial int64  `json:"serial"`
	Seed   int64  `json:"seed"`
	Count  int64  `json:"count"`
	Output string `json:"output"`
}

// Document is the persisted registry state.
type Document struct {
	Version       int      `json:"version"`
	NextRunSerial int64    `json:"next_run_serial"`
	LastRun       *LastRun `json:"last_run,omitempty"`
}

// NewDocument returns the state of a registry that was never written.
func NewDocument() Document {
	return Document{Version: DocumentVersion, NextRunSerial: 1}
}

// Validate checks the invariants of a loaded document.
func (d Document) Validate() error {
	if d.Version < 1 || d.Version > DocumentVersion {
		return fmt.Errorf("unsupported version %d", d.Version)
	}
	if d.NextRunSerial < 1 {
		return fmt.Errorf("next_run_serial must be >= 1, got %d", d.NextRunSerial)
	}
	return nil
}

// Reservation is a granted namespace.
type Reservation struct {
	Serial    int64
	Namespace string
}

// Registry grants unique run namespaces.
type Registry interface {
	// Reserve claims the next serial and records info as last_run.
	Reserve(ctx context.Context, info RunInfo) (Reservation, error)

	// Snapshot returns the current state without modifying it.
	Snapshot(ctx context.Context) (Document, error)

	// Close releases backend resources.
	Close() error
}

// Namespace formats the token for serial.
func Namespace(serial int64) string {
	return fmt.Sprintf("run%d", serial)
}

// Open returns the backend for path: SQLite for .db/.sqlite, JSON otherwise.
// Nothing is created until the first Reserve (SQLite creates its file on open).
func Open(path string) (Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path is empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return NewFile(path), nil
	}
}

// ReserveNamespace opens the registry at path, reserves one namespace and
// closes it again. It returns the token and the registry path used.
func ReserveNamespace(ctx context.Context, path string, info RunInfo) (string, string, error) {
	reg, err := Open(path)
	if err != nil {
		return "", path, err
	}
	defer reg.Close()

	res, err := reg.Reserve(ctx, info)
	if err != nil {
		return "", path, err
	}
	return res.Namespace, path, nil
}
