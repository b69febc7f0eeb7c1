package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dbforge/internal/registry"
)

// RegistryOptions holds flags for the registry commands.
type RegistryOptions struct {
	*RootOptions
	Path string

	// reserve
	Seed   int64
	Count  int64
	Output string
}

// NewRegistryCommand creates the registry command and its subcommands.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegistryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect or reserve generation namespaces",
		Long: `The id registry hands out one namespace token (run1, run2, ...) per
generation run. Paths ending in .db, .sqlite or .sqlite3 use a SQLite
backend; anything else is a JSON document.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Path, "id_registry_path", defaultRegistryPath(), "namespace registry path")

	show := &cobra.Command{
		Use:           "show",
		Short:         "Print the registry document",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryShow(opts, cmd)
		},
	}

	reserve := &cobra.Command{
		Use:           "reserve",
		Short:         "Reserve the next namespace token",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryReserve(opts, cmd)
		},
	}
	reserve.Flags().Int64Var(&opts.Seed, "seed", 0, "seed recorded as the last run")
	reserve.Flags().Int64Var(&opts.Count, "count", 0, "entity count recorded as the last run")
	reserve.Flags().StringVar(&opts.Output, "output", "", "output path recorded as the last run")

	cmd.AddCommand(show, reserve)
	return cmd
}

func runRegistryShow(opts *RegistryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := registry.Open(opts.Path)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err)
	}
	defer reg.Close()

	ctx, stop := commandContext(cmd)
	defer stop()

	doc, err := reg.Snapshot(ctx)
	if err != nil {
		return outputRegistryError(formatter, err)
	}
	return formatter.Success(&registryReport{Path: opts.Path, Document: doc})
}

func runRegistryReserve(opts *RegistryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx, stop := commandContext(cmd)
	defer stop()

	token, path, err := registry.ReserveNamespace(ctx, opts.Path, registry.RunInfo{
		Seed:   opts.Seed,
		Count:  opts.Count,
		Output: opts.Output,
	})
	if err != nil {
		return outputRegistryError(formatter, err)
	}
	return formatter.Success(&reservationReport{Path: path, Namespace: token})
}

func outputRegistryError(formatter *OutputFormatter, err error) error {
	if errors.Is(err, registry.ErrCorrupt) {
		_ = formatter.Error(ErrCodeRegistryCorrupt, err.Error(), nil)
		return WrapExitError(ExitFailure, "registry unusable", err)
	}
	return outputCommandError(formatter, ErrCodeGeneric, err)
}

// registryReport is the output of registry show.
type registryReport struct {
	Path string `json:"path"`
	registry.Document
}

// WriteText writes the human-readable report.
func (r *registryReport) WriteText(w io.Writer) error {
	b := &errWriter{w: w}
	b.printf("Registry %s\n", r.Path)
	b.printf("  version:          %d\n", r.Version)
	b.printf("  next run serial:  %d (namespace %s)\n", r.NextRunSerial, registry.Namespace(r.NextRunSerial))
	if r.LastRun == nil {
		b.printf("  last run:         none\n")
		return b.err
	}
	b.printf("  last run:         %s seed %d count %d -> %s\n",
		registry.Namespace(r.LastRun.Serial), r.LastRun.Seed, r.LastRun.Count, r.LastRun.Output)
	return b.err
}

// reservationReport is the output of registry reserve.
type reservationReport struct {
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
}

// WriteText writes the reserved token alone, for shell capture.
func (r *reservationReport) WriteText(w io.Writer) error {
	b := &errWriter{w: w}
	b.printf("%s\n", r.Namespace)
	return b.err
}
