package registry

import (
	"context"

	"github.com/roach88/dbforge/internal/store"
)

// SQLite is the transactional backend built on internal/store.
type SQLite struct {
	st *store.Store
}

// OpenSQLite opens (or creates) a SQLite registry at path.
func OpenSQLite(path string) (*SQLite, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLite{st: st}, nil
}

// Reserve claims the next serial inside a single transaction.
func (s *SQLite) Reserve(ctx context.Context, info RunInfo) (Reservation, error) {
	run, err := s.st.ReserveRun(ctx, info.Seed, info.Count, info.Output)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Serial: run.Serial, Namespace: Namespace(run.Serial)}, nil
}

// Snapshot reports the counter and last run as a Document.
func (s *SQLite) Snapshot(ctx context.Context) (Document, error) {
	next, err := s.st.NextRunSerial(ctx)
	if err != nil {
		return Document{}, err
	}
	doc := Document{Version: DocumentVersion, NextRunSerial: next}

	last, err := s.st.LastRun(ctx)
	if err != nil {
		return Document{}, err
	}
	if last != nil {
		doc.LastRun = &LastRun{Serial: last.Serial, Seed: last.Seed, Count: last.Count, Output: last.Output}
	}
	return doc, nil
}

// Close closes the underlying store.
func (s *SQLite) Close() error {
	return s.st.Close()
}
