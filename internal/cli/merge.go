package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/merge"
	"github.com/roach88/dbforge/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Target       string
	Output       string
	Sources      []string
	Globs        []string
	SourceLists  []string
	CreateTarget bool
	Backup       bool
	DryRun       bool
	SkipSelf     bool
	Dedupe       string
	AutoRemap    OnOff
	RemapRandom  OnOff
	Manifest     string
	Ledger       string

	// RunIDGenerator allows overriding the merge run id (for testing).
	// If nil, defaults to merge.UUIDv7Generator.
	RunIDGenerator merge.RunIDGenerator

	// Rand allows a fixed remap source (for testing).
	Rand *rand.Rand
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	return newMergeCommand(&MergeOptions{RootOptions: rootOpts, AutoRemap: true})
}

// newMergeCommand builds the command around opts. The on|off flags
// default to the values already in opts.
func newMergeCommand(opts *MergeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge record containers into a target",
		Long: `Append the records of one or more source containers to a target container.

Colliding container and entity ids are replaced with fresh ones and every
attribute record follows its entity. Sources that fail to parse are skipped.
A summary is printed whether or not the merge succeeds.

Example:
  dbforge merge --target all.jsonl --source a.jsonl --source b.jsonl
  dbforge merge --target all.jsonl --glob 'runs/**/*.jsonl' --dedupe exact --dry-run
  dbforge merge --manifest merge.yaml --backup`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "target container (required)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the result here instead of in place")
	cmd.Flags().StringArrayVar(&opts.Sources, "source", nil, "source container (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Globs, "glob", nil, "source glob, ** allowed (repeatable)")
	cmd.Flags().StringArrayVar(&opts.SourceLists, "source-list", nil, "file listing source paths (repeatable)")
	cmd.Flags().BoolVar(&opts.CreateTarget, "create-target", false, "treat a missing target as empty")
	cmd.Flags().BoolVar(&opts.Backup, "backup", false, "copy the target to <target>.bak before overwriting")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&opts.SkipSelf, "skip-self", false, "drop sources that are the target or output")
	cmd.Flags().StringVar(&opts.Dedupe, "dedupe", string(merge.DedupeNone), "duplicate filter (none|exact|create)")
	cmd.Flags().Var(&opts.AutoRemap, "auto-remap-collisions", "replace colliding ids (on|off)")
	cmd.Flags().Var(&opts.RemapRandom, "remap-db-random-id", "replace colliding per-record random ids (on|off)")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "YAML file with merge settings")
	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "SQLite ledger recording each written merge")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter)

	if opts.Manifest != "" {
		m, err := loadManifest(opts.Manifest)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load manifest", err)
		}
		m.apply(opts, cmd.Flags().Changed)
	}

	if opts.Target == "" {
		return NewExitError(ExitCommandError, "--target is required")
	}
	spec := merge.SourceSpec{Paths: opts.Sources, Globs: opts.Globs, Lists: opts.SourceLists}
	if spec.Empty() {
		return NewExitError(ExitCommandError, "at least one of --source, --glob or --source-list is required")
	}
	dedupe, err := merge.ParseDedupe(opts.Dedupe)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --dedupe", err)
	}

	var exclude []string
	if opts.SkipSelf {
		exclude = append(exclude, opts.Target)
		if opts.Output != "" {
			exclude = append(exclude, opts.Output)
		}
	}
	resolved, err := merge.ResolveSources(spec, exclude...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve sources", err)
	}
	for _, s := range resolved.Skipped {
		logger.Info("source dropped", "path", s.Path, "reason", s.Reason)
	}

	runIDGen := opts.RunIDGenerator
	if runIDGen == nil {
		runIDGen = merge.UUIDv7Generator{}
	}
	runID := runIDGen.Generate()

	ctx, stop := commandContext(cmd)
	defer stop()

	sum, err := merge.Run(ctx, merge.Options{
		Target:         opts.Target,
		Sources:        resolved.Paths,
		Output:         opts.Output,
		CreateTarget:   opts.CreateTarget,
		Backup:         opts.Backup,
		DryRun:         opts.DryRun,
		Dedupe:         dedupe,
		AutoRemap:      bool(opts.AutoRemap),
		RemapRandomIDs: bool(opts.RemapRandom),
		Rand:           opts.Rand,
		Logger:         logger,
		RunID:          runID,
	})

	report := &mergeReport{Summary: sum}
	if err != nil {
		code, exit := classifyMergeError(err)
		_ = formatter.Error(code, err.Error(), report)
		return WrapExitError(exit, "merge failed", err)
	}

	if opts.Ledger != "" && sum.State == merge.StateWritten {
		if lerr := recordMerge(ctx, opts.Ledger, sum, resolved.Paths); lerr != nil {
			logger.Warn("ledger write failed", "ledger", opts.Ledger, "error", lerr)
		}
	}

	return formatter.Success(report)
}

// classifyMergeError maps a merge failure to an error code and exit code.
func classifyMergeError(err error) (string, int) {
	switch {
	case merge.IsPrecondition(err):
		return ErrCodePrecondition, ExitFailure
	case merge.IsParseError(err):
		return ErrCodeTargetParse, ExitFailure
	case errors.Is(err, ids.ErrIDSpaceExhausted):
		return ErrCodeIDExhausted, ExitFailure
	case errors.Is(err, context.Canceled):
		return ErrCodeGeneric, ExitFailure
	default:
		return ErrCodeWriteFailed, ExitCommandError
	}
}

// recordMerge appends sum to the ledger at path.
func recordMerge(ctx context.Context, path string, sum *merge.Summary, sources []string) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()
	return st.WriteMerge(ctx, store.MergeEntry{
		RunID:   sum.RunID,
		Target:  sum.Target,
		Output:  sum.Output,
		DryRun:  sum.DryRun,
		Sources: sources,
		Stats:   sum.Stats(),
	})
}

// mergeReport renders a merge summary. JSON output is the summary itself.
type mergeReport struct {
	*merge.Summary
}

// WriteText writes the human-readable summary.
func (r *mergeReport) WriteText(w io.Writer) error {
	s := r.Summary
	b := &errWriter{w: w}
	b.printf("Merge %s: %s\n", s.RunID, s.State)
	b.printf("  target:     %s\n", s.Target)
	b.printf("  output:     %s\n", s.Output)
	b.printf("  dedupe:     %s\n", s.Dedupe)
	b.printf("  sources:    %d ok, %d skipped\n", s.SourcesOK, s.SourcesSkipped)
	b.printf("  records:    %d target, %d read, %d appended, %d skipped, %d final\n",
		s.TargetRecords, s.RecordsRead, s.RecordsAppended, s.RecordsSkipped, s.FinalRecords)
	b.printf("  remaps:     %d create, %d entity, %d random\n",
		s.CreateRemaps, s.EntityRemaps, s.RandomRemaps)
	b.printf("  unresolved: %d\n", s.UnresolvedCollisions)
	if s.Backup != "" {
		b.printf("  backup:     %s\n", s.Backup)
	}
	for _, src := range s.Sources {
		if src.Status == merge.SourceSkipped {
			b.printf("  - %s: skipped (%s)\n", src.Path, src.Error)
			continue
		}
		b.printf("  - %s: merged, read %d, appended %d, skipped %d, remaps %d\n",
			src.Path, src.Read, src.Appended, src.Skipped, len(src.Remaps))
	}
	return b.err
}

// errWriter keeps the first write error so a report can print without
// checking every line.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
