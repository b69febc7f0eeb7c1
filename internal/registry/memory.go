package registry

import (
	"context"
	"sync"
)

// Memory is an in-process Registry for tests.
type Memory struct {
	mu  sync.Mutex
	doc Document
	err error
}

// NewMemory returns a fresh in-memory registry starting at serial 1.
func NewMemory() *Memory {
	return &Memory{doc: NewDocument()}
}

// NewMemoryAt returns an in-memory registry whose next serial is next.
func NewMemoryAt(next int64) *Memory {
	m := NewMemory()
	m.doc.NextRunSerial = next
	return m
}

// FailWith makes every subsequent call return err.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reserve claims the next serial.
func (m *Memory) Reserve(_ context.Context, info RunInfo) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Reservation{}, m.err
	}

	serial := m.doc.NextRunSerial
	m.doc.NextRunSerial++
	m.doc.LastRun = &LastRun{Serial: serial, Seed: info.Seed, Count: info.Count, Output: info.Output}
	return Reservation{Serial: serial, Namespace: Namespace(serial)}, nil
}

// Snapshot returns a copy of the current state.
func (m *Memory) Snapshot(context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, m.err
	}

	doc := m.doc
	if doc.LastRun != nil {
		last := *doc.LastRun
		doc.LastRun = &last
	}
	return doc, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
