package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run is one reserved generation run.
type Run struct {
	Serial int64  `json:"serial"`
	Seed   int64  `json:"seed"`
	Count  int64  `json:"count"`
	Output string `json:"output"`
}

// ReserveRun claims the next run serial and records the run summary,
// atomically. The counter starts at 1.
func (s *Store) ReserveRun(ctx context.Context, seed, count int64, output string) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("reserve run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO run_registry (id, next_run_serial) VALUES (1, 1)
		ON CONFLICT(id) DO NOTHING
	`); err != nil {
		return Run{}, fmt.Errorf("reserve run: init counter: %w", err)
	}

	var next int64
	err = tx.QueryRowContext(ctx, `
		UPDATE run_registry SET next_run_serial = next_run_serial + 1
		WHERE id = 1
		RETURNING next_run_serial
	`).Scan(&next)
	if err != nil {
		return Run{}, fmt.Errorf("reserve run: bump counter: %w", err)
	}

	run := Run{Serial: next - 1, Seed: seed, Count: count, Output: output}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (serial, seed, count, output) VALUES (?, ?, ?, ?)
	`, run.Serial, run.Seed, run.Count, run.Output); err != nil {
		return Run{}, fmt.Errorf("reserve run: record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("reserve run: commit: %w", err)
	}
	return run, nil
}

// NextRunSerial returns the serial the next reservation will get.
func (s *Store) NextRunSerial(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `SELECT next_run_serial FROM run_registry WHERE id = 1`).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next run serial: %w", err)
	}
	return next, nil
}

// LastRun returns the most recently reserved run, or nil when none exists.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT serial, seed, count, output FROM runs
		ORDER BY serial DESC LIMIT 1
	`).Scan(&r.Serial, &r.Seed, &r.Count, &r.Output)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &r, nil
}
