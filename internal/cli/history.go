package cli

import (
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/dbforge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Ledger string
	Target string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List merges recorded in a ledger",
		Long: `List the merges recorded by "dbforge merge --ledger", oldest first.

Example:
  dbforge history --ledger merges.db
  dbforge history --ledger merges.db --target all.jsonl --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", "", "path to the SQLite ledger (required)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "only merges into this target")
	_ = cmd.MarkFlagRequired("ledger")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Ledger); err != nil {
		return outputCommandError(formatter, ErrCodeNotFound, err)
	}
	st, err := store.Open(opts.Ledger)
	if err != nil {
		return outputCommandError(formatter, ErrCodeLedger, err)
	}
	defer st.Close()

	ctx, stop := commandContext(cmd)
	defer stop()

	var entries []store.MergeEntry
	if opts.Target != "" {
		entries, err = st.MergesForTarget(ctx, opts.Target)
	} else {
		entries, err = st.ListMerges(ctx)
	}
	if err != nil {
		return outputCommandError(formatter, ErrCodeLedger, err)
	}
	if entries == nil {
		entries = []store.MergeEntry{}
	}
	return formatter.Success(historyReport(entries))
}

// historyReport is the output of the history command.
type historyReport []store.MergeEntry

// WriteText writes one block per merge.
func (h historyReport) WriteText(w io.Writer) error {
	b := &errWriter{w: w}
	if len(h) == 0 {
		b.printf("No merges recorded\n")
		return b.err
	}
	for _, e := range h {
		b.printf("#%d %s %s -> %s (%d sources)\n", e.Seq, e.RunID, e.Target, e.Output, len(e.Sources))
		keys := make([]string, 0, len(e.Stats))
		for k := range e.Stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.printf("    %s: %d\n", k, e.Stats[k])
		}
	}
	return b.err
}
