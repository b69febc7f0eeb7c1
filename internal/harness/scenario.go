package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dbforge/internal/merge"
)

// Scenario defines a merge conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target lists the entities of the target container.
	// Nil means the target file does not exist.
	Target []EntitySpec `yaml:"target"`

	// Sources are laid out next to the target and merged in order.
	Sources []SourceFile `yaml:"sources"`

	// Options configures the merge.
	Options Options `yaml:"options"`

	// Expect is the expected outcome of the last pass.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the written output.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Seed seeds the remap source. Zero is a valid seed.
	Seed uint64 `yaml:"seed,omitempty"`
}

// EntitySpec is one CreateRecord plus one string attribute per value.
type EntitySpec struct {
	Container int64    `yaml:"container"`
	Entity    int64    `yaml:"entity"`
	Values    []string `yaml:"values,omitempty"`
}

// SourceFile is one source container.
// Exactly one of Entities, Raw or Missing describes its content.
type SourceFile struct {
	Name     string       `yaml:"name"`
	Entities []EntitySpec `yaml:"entities,omitempty"`
	Raw      string       `yaml:"raw,omitempty"`
	Missing  bool         `yaml:"missing,omitempty"`
}

// Options mirrors the merge flags a scenario can set.
type Options struct {
	Dedupe         string `yaml:"dedupe,omitempty"`
	AutoRemap      *bool  `yaml:"auto_remap,omitempty"` // nil means on
	RemapRandomIDs bool   `yaml:"remap_random_ids,omitempty"`
	CreateTarget   bool   `yaml:"create_target,omitempty"`
	DryRun         bool   `yaml:"dry_run,omitempty"`

	// Passes repeats the same merge, for idempotence checks. Zero means 1.
	Passes int `yaml:"passes,omitempty"`
}

// ExpectClause specifies the expected merge outcome.
type ExpectClause struct {
	// State is the expected terminal state.
	State merge.State `yaml:"state"`

	// Error is the expected failure: a precondition code such as
	// TARGET_MISSING, or "parse" for an unreadable target.
	Error string `yaml:"error,omitempty"`

	// Stats is a subset match against Summary.Stats.
	Stats map[string]int64 `yaml:"stats,omitempty"`
}

// Assertion validates the written output.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Entity is the entity id (used by minted and attributes).
	Entity int64 `yaml:"entity,omitempty"`

	// Count is the expected count (used by record_count, minted, attributes).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertIntegrity   = "integrity"
	AssertRecordCount = "record_count"
	AssertMinted      = "minted"
	AssertAttributes  = "attributes"
	AssertEntityIDs   = "entity_ids"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Expect.State == "" {
		return fmt.Errorf("expect.state is required")
	}

	if s.Options.Passes < 0 {
		return fmt.Errorf("options.passes must be non-negative")
	}

	if s.Options.Dedupe != "" {
		if _, err := merge.ParseDedupe(s.Options.Dedupe); err != nil {
			return fmt.Errorf("options: %w", err)
		}
	}

	names := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[src.Name] || src.Name == targetName {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name)
		}
		names[src.Name] = true

		kinds := 0
		if len(src.Entities) > 0 {
			kinds++
		}
		if src.Raw != "" {
			kinds++
		}
		if src.Missing {
			kinds++
		}
		if kinds != 1 {
			return fmt.Errorf("sources[%d]: exactly one of entities, raw or missing is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertIntegrity, AssertEntityIDs:
	case AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for record_count", index)
		}
	case AssertMinted, AssertAttributes:
		if a.Entity == 0 {
			return fmt.Errorf("assertions[%d]: entity is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
