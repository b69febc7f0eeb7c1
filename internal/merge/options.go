package merge

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

// Dedupe selects the duplicate filter applied to incoming records.
type Dedupe string

const (
	// DedupeNone appends every record.
	DedupeNone Dedupe = "none"

	// DedupeExact drops a record whose content hash was already seen in the
	// target or an earlier record of this merge. A CreateRecord identical to
	// one already written is rewritten the same way, so it and its
	// attributes are dropped even when the first copy was remapped.
	DedupeExact Dedupe = "exact"

	// DedupeCreate drops every record of an entity whose minted id was
	// already created in the target, an earlier source or earlier in the
	// same source.
	DedupeCreate Dedupe = "create"
)

// ValidDedupes lists the accepted policies.
var ValidDedupes = []Dedupe{DedupeNone, DedupeExact, DedupeCreate}

// ParseDedupe validates a policy name.
func ParseDedupe(s string) (Dedupe, error) {
	for _, d := range ValidDedupes {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("invalid dedupe policy %q: must be one of %v", s, ValidDedupes)
}

// MaxRemapDraws caps the random draws spent finding one free replacement id.
const MaxRemapDraws = 10_000

// Options configures one merge invocation.
type Options struct {
	// Target is the container merged into. Required.
	Target string

	// Sources are the containers to append, in order.
	Sources []string

	// Output is where the result is written. Empty means in place on Target.
	Output string

	// CreateTarget allows a missing Target, treated as empty.
	CreateTarget bool

	// Backup copies Target to Target+".bak" before an in-place write.
	Backup bool

	// DryRun performs every step except the final write.
	DryRun bool

	// Dedupe is the duplicate filter. Empty means DedupeNone.
	Dedupe Dedupe

	// AutoRemap replaces colliding CreateRecord ids with fresh ones.
	// When false, collisions are kept and counted as unresolved.
	AutoRemap bool

	// RemapRandomIDs replaces colliding per-record random ids.
	RemapRandomIDs bool

	// Rand drives replacement id draws. Nil means a randomly seeded PCG.
	Rand *rand.Rand

	// Logger receives progress and per-source failures. Nil discards.
	Logger *slog.Logger

	// RunID correlates log lines and the ledger entry.
	RunID string
}

// OutputPath returns where the merge writes.
func (o Options) OutputPath() string {
	if o.Output != "" {
		return o.Output
	}
	return o.Target
}

// InPlace reports whether the merge overwrites Target.
func (o Options) InPlace() bool {
	return o.OutputPath() == o.Target
}

func (o Options) validate() error {
	if o.Target == "" {
		return &PreconditionError{Code: ErrCodeInvalidOptions, Message: "target is required"}
	}
	if o.Dedupe == "" {
		return nil
	}
	if _, err := ParseDedupe(string(o.Dedupe)); err != nil {
		return &PreconditionError{Code: ErrCodeInvalidOptions, Message: err.Error()}
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (o Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
