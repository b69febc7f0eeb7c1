package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbforge/internal/merge"
	"github.com/roach88/dbforge/internal/store"
	"github.com/roach88/dbforge/internal/testutil"
)

// goldenDir is resolved before tests change directory.
func goldenDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(filepath.Join("testdata", "golden"))
	require.NoError(t, err)
	return dir
}

func newGolden(t *testing.T, dir string) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
}

// mergeCmd builds a merge command with a fixed run id and remap source.
func mergeCmd(format string, args ...string) (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := newMergeCommand(&MergeOptions{
		RootOptions:    &RootOptions{Format: format},
		AutoRemap:      true,
		RunIDGenerator: testutil.NewFixedRunIDGenerator("test-run-0001"),
		Rand:           testutil.Rand(1),
	})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd, buf
}

func TestMergeCommand_RemapSummary(t *testing.T) {
	golden := goldenDir(t)
	t.Chdir(t.TempDir())
	testutil.WriteRecords(t, "target.jsonl", testutil.Entity(1000, 500, "orig")...)
	testutil.WriteRecords(t, "src.jsonl", testutil.Entity(2000, 500, "a", "b", "c")...)

	cmd, buf := mergeCmd("text", "--target", "target.jsonl", "--source", "src.jsonl")
	require.NoError(t, cmd.Execute())

	newGolden(t, golden).Assert(t, "merge_remap", buf.Bytes())

	got := testutil.ReadRecords(t, "target.jsonl")
	assert.Len(t, got, 6)
	testutil.CheckIntegrity(t, got)
}

func TestMergeCommand_MissingTarget(t *testing.T) {
	golden := goldenDir(t)
	t.Chdir(t.TempDir())
	testutil.WriteRecords(t, "src.jsonl", testutil.Entity(2000, 500, "a")...)

	cmd, buf := mergeCmd("text", "--target", "target.jsonl", "--source", "src.jsonl")
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	newGolden(t, golden).Assert(t, "merge_missing_target", buf.Bytes())
	_, statErr := os.Stat("target.jsonl")
	assert.True(t, os.IsNotExist(statErr))
}

func TestMergeCommand_SkipsUnreadableSource(t *testing.T) {
	golden := goldenDir(t)
	t.Chdir(t.TempDir())
	testutil.WriteRecords(t, "target.jsonl", testutil.Entity(1, 100, "t")...)
	testutil.WriteRecords(t, "good.jsonl", testutil.Entity(2, 200, "a")...)

	cmd, buf := mergeCmd("text",
		"--target", "target.jsonl",
		"--source", "missing.jsonl",
		"--source", "good.jsonl",
	)
	require.NoError(t, cmd.Execute())

	newGolden(t, golden).Assert(t, "merge_skip_source", buf.Bytes())
	assert.Len(t, testutil.ReadRecords(t, "target.jsonl"), 4)
}

func TestMergeCommand_NoUsableSources(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1, 100, "t")...)
	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("not json\n"), 0644))

	cmd, buf := mergeCmd("text", "--target", target, "--source", bad)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "line 1")
	assert.Contains(t, buf.String(), "Error [E201]: NO_USABLE_SOURCES")
}

func TestMergeCommand_UnparseableTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	require.NoError(t, os.WriteFile(target, []byte("garbage\n"), 0644))
	src := filepath.Join(dir, "src.jsonl")
	testutil.WriteRecords(t, src, testutil.Entity(2, 200, "a")...)

	cmd, buf := mergeCmd("text", "--target", target, "--source", src)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E202]")
}

func TestMergeCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1000, 500, "orig")...)
	src := filepath.Join(dir, "src.jsonl")
	testutil.WriteRecords(t, src, testutil.Entity(2000, 500, "a", "b", "c")...)

	cmd, buf := mergeCmd("json", "--target", target, "--source", src, "--dry-run")
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string        `json:"status"`
		Data   merge.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-run-0001", resp.Data.RunID)
	assert.Equal(t, merge.StateDryRunReported, resp.Data.State)
	assert.True(t, resp.Data.DryRun)
	assert.Equal(t, 1, resp.Data.EntityRemaps)
	assert.Equal(t, 6, resp.Data.FinalRecords)
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, merge.SourceMerged, resp.Data.Sources[0].Status)

	// dry run leaves the target alone
	assert.Len(t, testutil.ReadRecords(t, target), 2)
}

func TestMergeCommand_JSONError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jsonl")
	testutil.WriteRecords(t, src, testutil.Entity(2, 200, "a")...)

	cmd, buf := mergeCmd("json", "--target", filepath.Join(dir, "nope.jsonl"), "--source", src)
	err := cmd.Execute()
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string        `json:"code"`
			Message string        `json:"message"`
			Details merge.Summary `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodePrecondition, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "TARGET_MISSING")
	assert.Equal(t, merge.StateFailed, resp.Error.Details.State)
}

func TestMergeCommand_FlagErrors(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1, 100, "t")...)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no target", []string{"--source", "a.jsonl"}, "--target is required"},
		{"no sources", []string{"--target", target}, "at least one of"},
		{"bad dedupe", []string{"--target", target, "--source", target, "--dedupe", "fuzzy"}, "invalid --dedupe"},
		{"bad glob", []string{"--target", target, "--glob", "[unclosed"}, "failed to resolve sources"},
		{"bad on/off", []string{"--target", target, "--source", target, "--auto-remap-collisions", "maybe"}, "on or off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := mergeCmd("text", tt.args...)
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			if tt.name != "bad on/off" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
			}
		})
	}
}

func TestMergeCommand_SkipSelfAndGlob(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "all.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1, 100, "t")...)
	testutil.WriteRecords(t, filepath.Join(dir, "runs", "a", "one.jsonl"), testutil.Entity(2, 200, "a")...)
	testutil.WriteRecords(t, filepath.Join(dir, "runs", "b", "two.jsonl"), testutil.Entity(3, 300, "b")...)

	cmd, buf := mergeCmd("json",
		"--target", target,
		"--glob", filepath.Join(dir, "**", "*.jsonl"),
		"--skip-self",
	)
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data merge.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Sources, 2)
	assert.Equal(t, filepath.Join(dir, "runs", "a", "one.jsonl"), resp.Data.Sources[0].Path)
	assert.Equal(t, filepath.Join(dir, "runs", "b", "two.jsonl"), resp.Data.Sources[1].Path)
	assert.Len(t, testutil.ReadRecords(t, target), 6)
}

func TestMergeCommand_DedupeExactTwice(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1, 100, "t")...)
	src := filepath.Join(dir, "src.jsonl")
	testutil.WriteRecords(t, src, testutil.Entity(2, 200, "a", "b")...)

	for i := 0; i < 2; i++ {
		cmd, _ := mergeCmd("text", "--target", target, "--source", src, "--dedupe", "exact")
		require.NoError(t, cmd.Execute())
	}
	assert.Len(t, testutil.ReadRecords(t, target), 5)
}

func TestMergeCommand_LedgerAndHistory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1, 100, "t")...)
	src := filepath.Join(dir, "src.jsonl")
	testutil.WriteRecords(t, src, testutil.Entity(2, 200, "a")...)
	ledger := filepath.Join(dir, "ledger.db")

	// dry runs are not recorded
	cmd, _ := mergeCmd("text", "--target", target, "--source", src, "--ledger", ledger, "--dry-run")
	require.NoError(t, cmd.Execute())
	cmd, _ = mergeCmd("text", "--target", target, "--source", src, "--ledger", ledger)
	require.NoError(t, cmd.Execute())

	st, err := store.Open(ledger)
	require.NoError(t, err)
	entries, err := st.ListMerges(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())

	require.Len(t, entries, 1)
	assert.Equal(t, "test-run-0001", entries[0].RunID)
	assert.Equal(t, target, entries[0].Target)
	assert.Equal(t, []string{src}, entries[0].Sources)
	assert.Equal(t, int64(2), entries[0].Stats["records_appended"])
	assert.Equal(t, int64(4), entries[0].Stats["final_records"])
}

func TestMergeCommand_Manifest(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteRecords(t, filepath.Join(dir, "target.jsonl"), testutil.Entity(1000, 500, "orig")...)
	testutil.WriteRecords(t, filepath.Join(dir, "src.jsonl"), testutil.Entity(2000, 500, "a")...)

	manifest := filepath.Join(dir, "merge.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`target: target.jsonl
output: merged.jsonl
sources:
  - src.jsonl
dedupe: none
auto_remap_collisions: off
backup: true
`), 0644))

	cmd, buf := mergeCmd("json", "--manifest", manifest)
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data merge.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, filepath.Join(dir, "merged.jsonl"), resp.Data.Output)
	assert.Equal(t, 0, resp.Data.EntityRemaps)
	assert.Equal(t, 1, resp.Data.UnresolvedCollisions)
	// backup only applies to in-place writes
	assert.Empty(t, resp.Data.Backup)
	assert.Len(t, testutil.ReadRecords(t, filepath.Join(dir, "merged.jsonl")), 4)
}

func TestMergeCommand_FlagsOverrideManifest(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.jsonl")
	testutil.WriteRecords(t, target, testutil.Entity(1000, 500, "orig")...)
	testutil.WriteRecords(t, filepath.Join(dir, "src.jsonl"), testutil.Entity(2000, 500, "a")...)

	manifest := filepath.Join(dir, "merge.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`target: target.jsonl
sources: [src.jsonl]
auto_remap_collisions: off
dry_run: true
`), 0644))

	cmd, buf := mergeCmd("json", "--manifest", manifest, "--auto-remap-collisions", "on", "--dry-run=false")
	require.NoError(t, cmd.Execute())

	var resp struct {
		Data merge.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, merge.StateWritten, resp.Data.State)
	assert.Equal(t, 1, resp.Data.EntityRemaps)
	assert.Len(t, testutil.ReadRecords(t, target), 4)
}

func TestMergeCommand_ManifestErrors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("targett: x\n"), 0644))
	badOnOff := filepath.Join(dir, "onoff.yaml")
	require.NoError(t, os.WriteFile(badOnOff, []byte("auto_remap_collisions: sometimes\n"), 0644))

	for name, path := range map[string]string{
		"missing":       filepath.Join(dir, "nope.yaml"),
		"unknown field": unknown,
		"bad on/off":    badOnOff,
	} {
		t.Run(name, func(t *testing.T) {
			cmd, _ := mergeCmd("text", "--manifest", path)
			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), "failed to load manifest")
		})
	}
}
