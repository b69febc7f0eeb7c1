package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// MergeEntry is one row of the merge ledger.
type MergeEntry struct {
	Seq     int64            `json:"seq"`
	RunID   string           `json:"run_id"`
	Target  string           `json:"target"`
	Output  string           `json:"output"`
	DryRun  bool             `json:"dry_run"`
	Sources []string         `json:"sources"`
	Stats   map[string]int64 `json:"stats"`
}

// WriteMerge appends a ledger row.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - rewriting the same
// run id is silently ignored.
func (s *Store) WriteMerge(ctx context.Context, e MergeEntry) error {
	sources := e.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("write merge: marshal sources: %w", err)
	}
	stats := e.Stats
	if stats == nil {
		stats = map[string]int64{}
	}
	// encoding/json sorts map keys, so stats text is deterministic
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("write merge: marshal stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merges (run_id, target, output, dry_run, sources, stats)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, e.RunID, e.Target, e.Output, e.DryRun, string(sourcesJSON), string(statsJSON))
	if err != nil {
		return fmt.Errorf("write merge: %w", err)
	}
	return nil
}

// ListMerges returns every ledger row in insertion order.
func (s *Store) ListMerges(ctx context.Context) ([]MergeEntry, error) {
	return s.queryMerges(ctx, `
		SELECT seq, run_id, target, output, dry_run, sources, stats
		FROM merges ORDER BY seq ASC
	`)
}

// MergesForTarget returns the ledger rows for one target, in insertion order.
func (s *Store) MergesForTarget(ctx context.Context, target string) ([]MergeEntry, error) {
	return s.queryMerges(ctx, `
		SELECT seq, run_id, target, output, dry_run, sources, stats
		FROM merges WHERE target = ? ORDER BY seq ASC
	`, target)
}

func (s *Store) queryMerges(ctx context.Context, query string, args ...any) ([]MergeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list merges: %w", err)
	}
	defer rows.Close()

	var out []MergeEntry
	for rows.Next() {
		var (
			e                      MergeEntry
			sourcesJSON, statsJSON string
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &e.Target, &e.Output, &e.DryRun, &sourcesJSON, &statsJSON); err != nil {
			return nil, fmt.Errorf("list merges: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &e.Sources); err != nil {
			return nil, fmt.Errorf("list merges: sources: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &e.Stats); err != nil {
			return nil, fmt.Errorf("list merges: stats: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list merges: %w", err)
	}
	return out, nil
}
