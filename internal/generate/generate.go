package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/dbforge/internal/container"
	"github.com/roach88/dbforge/internal/fsutil"
	"github.com/roach88/dbforge/internal/record"
)

// Options configures one generation run.
type Options struct {
	Seed       int64
	Namespace  string
	Count      int64
	StartIndex int64
	Output     string
	Plan       *Plan        // nil means DefaultPlan
	Logger     *slog.Logger // nil discards
}

// Result summarizes a finished run.
type Result struct {
	Output     string `json:"output"`
	Seed       int64  `json:"seed"`
	Namespace  string `json:"namespace"`
	StartIndex int64  `json:"start_index"`
	Entities   int64  `json:"entities"`
	Records    int    `json:"records"`
}

// Generate emits opts.Count entities starting at opts.StartIndex and
// atomically writes them to opts.Output. On error the output is untouched.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Count < 0 {
		return nil, fmt.Errorf("count must be >= 0, got %d", opts.Count)
	}
	if opts.StartIndex < 0 {
		return nil, fmt.Errorf("start index must be >= 0, got %d", opts.StartIndex)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	out, err := fsutil.CreateAtomic(opts.Output)
	if err != nil {
		return nil, err
	}
	defer out.Abort()

	em := NewEmitter(opts.Seed, opts.Namespace, opts.Plan)
	w := container.NewWriter(out)

	for i := opts.StartIndex; i < opts.StartIndex+opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := em.Emit(i)
		if err != nil {
			return nil, err
		}
		if err := record.Write(w, recs...); err != nil {
			return nil, fmt.Errorf("write entity %d: %w", i, err)
		}
		log.Debug("entity emitted", "index", i, "entity_id", recs[0].(*record.Create).EntityID)
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	if err := out.Commit(fsutil.ModeOr(opts.Output, 0644)); err != nil {
		return nil, err
	}

	res := &Result{
		Output:     opts.Output,
		Seed:       opts.Seed,
		Namespace:  opts.Namespace,
		StartIndex: opts.StartIndex,
		Entities:   opts.Count,
		Records:    w.Count(),
	}
	log.Info("generation finished",
		"output", res.Output,
		"namespace", res.Namespace,
		"entities", res.Entities,
		"records", res.Records,
	)
	return res, nil
}
