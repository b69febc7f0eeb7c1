package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dbforge/internal/merge"
)

// SummarySnapshot captures a merge summary for golden comparison.
// Paths are reduced to names relative to the scenario directory.
type SummarySnapshot struct {
	ScenarioName string           `json:"scenario_name"`
	RunID        string           `json:"run_id"`
	State        merge.State      `json:"state"`
	Error        string           `json:"error,omitempty"`
	Stats        map[string]int64 `json:"stats"`
	Sources      []SourceSnapshot `json:"sources"`
}

// SourceSnapshot is the per-source part of a SummarySnapshot.
type SourceSnapshot struct {
	Name     string             `json:"name"`
	Status   merge.SourceStatus `json:"status"`
	Error    string             `json:"error,omitempty"`
	Read     int                `json:"read"`
	Appended int                `json:"appended"`
	Skipped  int                `json:"skipped"`
	Remapped []string           `json:"remapped,omitempty"`
}

// Snapshot builds the golden snapshot of result.
func Snapshot(name string, result *Result) SummarySnapshot {
	rel := func(s string) string {
		return strings.ReplaceAll(s, result.Dir+string(os.PathSeparator), "")
	}

	sum := result.Summary
	snap := SummarySnapshot{
		ScenarioName: name,
		RunID:        sum.RunID,
		State:        sum.State,
		Stats:        sum.Stats(),
		Sources:      []SourceSnapshot{},
	}
	if result.Err != nil {
		snap.Error = rel(result.Err.Error())
	}
	for _, src := range sum.Sources {
		s := SourceSnapshot{
			Name:     rel(src.Path),
			Status:   src.Status,
			Error:    rel(src.Error),
			Read:     src.Read,
			Appended: src.Appended,
			Skipped:  src.Skipped,
		}
		for _, r := range src.Remaps {
			s.Remapped = append(s.Remapped, fmt.Sprintf("%s %d", r.Kind, r.Old))
		}
		snap.Sources = append(snap.Sources, s)
	}
	return snap
}

// RunWithGolden executes a scenario and compares its summary snapshot
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further checks. Test failure
// (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(Snapshot(scenario.Name, result), "", "  ")
	if err != nil {
		return nil, err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
