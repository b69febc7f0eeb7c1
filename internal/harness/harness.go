package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/dbforge/internal/container"
	"github.com/roach88/dbforge/internal/merge"
	"github.com/roach88/dbforge/internal/record"
	"github.com/roach88/dbforge/internal/testutil"
)

const targetName = "target.jsonl"

// Harness is the scenario execution engine.
// It runs merges with a fixed run id and a seeded remap source.
type Harness struct {
	dir    string
	runGen *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory for isolation.
//
// Execution flow:
// 1. Lay out the target and sources
// 2. Run the merge Options.Passes times
// 3. Check the expect clause against the last pass
// 4. Evaluate assertions against the output
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "dbforge-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		dir:    dir,
		runGen: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	sources, err := h.layout(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out scenario: %w", err)
	}

	result := NewResult()
	result.Dir = dir

	passes := scenario.Options.Passes
	if passes == 0 {
		passes = 1
	}
	opts := h.options(scenario, sources)
	for i := 0; i < passes; i++ {
		result.Summary, result.Err = merge.Run(ctx, opts)
	}

	for _, msg := range checkExpect(scenario.Expect, result) {
		result.AddError(msg)
	}

	if result.Err == nil && !scenario.Options.DryRun {
		recs, err := record.ReadFile(opts.OutputPath())
		if err != nil {
			return nil, fmt.Errorf("failed to read output: %w", err)
		}
		for _, msg := range EvaluateAssertions(recs, scenario.Assertions) {
			result.AddError(msg)
		}
	}

	return result, nil
}

// layout writes the scenario's containers and returns the source paths in
// merge order.
func (h *Harness) layout(s *Scenario) ([]string, error) {
	if s.Target != nil {
		if err := writeEntities(filepath.Join(h.dir, targetName), s.Target); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(s.Sources))
	for _, src := range s.Sources {
		path := filepath.Join(h.dir, src.Name)
		paths = append(paths, path)
		switch {
		case src.Missing:
		case src.Raw != "":
			if err := os.WriteFile(path, []byte(src.Raw), 0644); err != nil {
				return nil, err
			}
		default:
			if err := writeEntities(path, src.Entities); err != nil {
				return nil, err
			}
		}
	}
	return paths, nil
}

func (h *Harness) options(s *Scenario, sources []string) merge.Options {
	autoRemap := true
	if s.Options.AutoRemap != nil {
		autoRemap = *s.Options.AutoRemap
	}
	return merge.Options{
		Target:         filepath.Join(h.dir, targetName),
		Sources:        sources,
		CreateTarget:   s.Options.CreateTarget,
		DryRun:         s.Options.DryRun,
		Dedupe:         merge.Dedupe(s.Options.Dedupe),
		AutoRemap:      autoRemap,
		RemapRandomIDs: s.Options.RemapRandomIDs,
		Rand:           testutil.Rand(s.Seed),
		Logger:         h.logger,
		RunID:          h.runGen.Generate(),
	}
}

func writeEntities(path string, entities []EntitySpec) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := container.NewWriter(f)
	for _, e := range entities {
		if err := record.Write(w, testutil.Entity(e.Container, e.Entity, e.Values...)...); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// checkExpect compares the last pass against the expect clause.
func checkExpect(want ExpectClause, result *Result) []string {
	var errs []string
	sum := result.Summary

	if sum.State != want.State {
		errs = append(errs, fmt.Sprintf("state: expected %s, got %s", want.State, sum.State))
	}

	switch {
	case want.Error == "" && result.Err != nil:
		errs = append(errs, fmt.Sprintf("unexpected error: %v", result.Err))
	case want.Error != "" && result.Err == nil:
		errs = append(errs, fmt.Sprintf("expected error %s, merge succeeded", want.Error))
	case want.Error != "":
		if got := errorKind(result.Err); got != want.Error {
			errs = append(errs, fmt.Sprintf("error: expected %s, got %s (%v)", want.Error, got, result.Err))
		}
	}

	stats := sum.Stats()
	for _, k := range sortedKeys(want.Stats) {
		got, ok := stats[k]
		if !ok {
			errs = append(errs, fmt.Sprintf("stats: unknown counter %q", k))
			continue
		}
		if got != want.Stats[k] {
			errs = append(errs, fmt.Sprintf("stats.%s: expected %d, got %d", k, want.Stats[k], got))
		}
	}
	return errs
}

// errorKind names a merge error the way expect.error spells it.
func errorKind(err error) string {
	var pe *merge.PreconditionError
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	if merge.IsParseError(err) {
		return "parse"
	}
	return "other"
}
