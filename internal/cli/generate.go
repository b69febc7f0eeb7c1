package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/dbforge/internal/generate"
	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/registry"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Seed          int64
	Count         int64
	StartIndex    int64
	Plan          string
	Output        string
	RegistryMode  string
	RegistryPath  string
	NamespaceSalt string

	// Registry allows injecting a registry backend (for testing).
	// If nil, the backend is opened from RegistryPath when needed.
	Registry registry.Registry
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return newGenerateCommand(&GenerateOptions{RootOptions: rootOpts})
}

func newGenerateCommand(opts *GenerateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate entity records with deterministic ids",
		Long: `Generate entity records whose ids are derived from the seed, the run
namespace and the entity index.

By default every run reserves a fresh namespace (run1, run2, ...) from the
id registry so that two runs with the same seed never collide. Pass
--id_namespace_salt to replay a run exactly, or --id_registry_mode off to
use the empty namespace.

Example:
  dbforge generate --seed 42 --count 1000 --output entities.jsonl
  dbforge generate --seed 42 --count 10 --plan plan.cue --output out.jsonl --id_namespace_salt run7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "generation seed (required)")
	cmd.Flags().Int64Var(&opts.Count, "count", 1, "number of entities")
	cmd.Flags().Int64Var(&opts.StartIndex, "start-index", 0, "index of the first entity")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "CUE generation plan")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output container (required)")
	cmd.Flags().StringVar(&opts.RegistryMode, "id_registry_mode", string(registry.ModeAuto), "namespace registry mode (auto|off)")
	cmd.Flags().StringVar(&opts.RegistryPath, "id_registry_path", defaultRegistryPath(), "namespace registry (.json file or .db SQLite)")
	cmd.Flags().StringVar(&opts.NamespaceSalt, "id_namespace_salt", "", "explicit namespace; bypasses the registry")
	_ = cmd.MarkFlagRequired("seed")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// defaultRegistryPath returns ~/.dbforge/registry.json.
func defaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".dbforge", "registry.json")
	}
	return filepath.Join(home, ".dbforge", "registry.json")
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter)

	mode, err := registry.ParseMode(opts.RegistryMode)
	if err != nil {
		return outputCommandError(formatter, ErrCodeInvalidFlag, err)
	}
	if opts.Count < 1 {
		return outputCommandError(formatter, ErrCodeInvalidFlag, fmt.Errorf("--count must be at least 1, got %d", opts.Count))
	}
	if opts.StartIndex < 0 {
		return outputCommandError(formatter, ErrCodeInvalidFlag, fmt.Errorf("--start-index must be >= 0, got %d", opts.StartIndex))
	}

	plan := generate.DefaultPlan()
	if opts.Plan != "" {
		plan, err = generate.LoadPlan(opts.Plan)
		if err != nil {
			return outputCommandError(formatter, ErrCodePlanInvalid, err)
		}
		logger.Debug("plan loaded", "path", opts.Plan, "table", plan.Table, "attributes", len(plan.Attributes))
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	reg := opts.Registry
	if reg == nil && mode == registry.ModeAuto && opts.NamespaceSalt == "" {
		reg, err = registry.Open(opts.RegistryPath)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, err)
		}
		defer reg.Close()
	}

	res, err := registry.Resolve(ctx, mode, opts.NamespaceSalt, reg, registry.RunInfo{
		Seed:   opts.Seed,
		Count:  opts.Count,
		Output: opts.Output,
	})
	if err != nil {
		if errors.Is(err, registry.ErrCorrupt) {
			_ = formatter.Error(ErrCodeRegistryCorrupt, err.Error(), nil)
			return WrapExitError(ExitFailure, "registry unusable", err)
		}
		return outputCommandError(formatter, ErrCodeGeneric, err)
	}
	logger.Info("namespace resolved", "namespace", res.Namespace, "source", res.Source, "serial", res.Serial)

	result, err := generate.Generate(ctx, generate.Options{
		Seed:       opts.Seed,
		Namespace:  res.Namespace,
		Count:      opts.Count,
		StartIndex: opts.StartIndex,
		Output:     opts.Output,
		Plan:       plan,
		Logger:     logger,
	})
	if err != nil {
		if errors.Is(err, ids.ErrIDSpaceExhausted) {
			_ = formatter.Error(ErrCodeIDExhausted, err.Error(), nil)
			return WrapExitError(ExitFailure, "generation failed", err)
		}
		return outputCommandError(formatter, ErrCodeWriteFailed, err)
	}

	return formatter.Success(&generateReport{
		Result:         result,
		NamespaceFrom:  res.Source,
		RegistrySerial: res.Serial,
	})
}

// outputCommandError reports err and returns the matching exit error.
func outputCommandError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}

// generateReport is the generate command's output.
type generateReport struct {
	*generate.Result
	NamespaceFrom  string `json:"namespace_source"`
	RegistrySerial int64  `json:"registry_serial,omitempty"`
}

// WriteText writes the human-readable report.
func (r *generateReport) WriteText(w io.Writer) error {
	b := &errWriter{w: w}
	b.printf("Generated %d entities (%d records) -> %s\n", r.Entities, r.Records, r.Output)
	b.printf("  seed:       %d\n", r.Seed)
	ns := r.Namespace
	if ns == "" {
		ns = "(none)"
	}
	switch r.NamespaceFrom {
	case "registry":
		b.printf("  namespace:  %s (registry serial %d)\n", ns, r.RegistrySerial)
	default:
		b.printf("  namespace:  %s (%s)\n", ns, r.NamespaceFrom)
	}
	b.printf("  start:      %d\n", r.StartIndex)
	return b.err
}
