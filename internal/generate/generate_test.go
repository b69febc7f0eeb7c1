package generate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dbforge/internal/block"
	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/record"
	"github.com/roach88/dbforge/internal/testutil"
)

func TestGenerate_Golden(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	res, err := Generate(context.Background(), Options{Seed: 42, Count: 2, Output: out})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Entities)
	assert.Equal(t, 4, res.Records)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "generate_seed42", data)
}

func TestGenerate_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jsonl")
	b := filepath.Join(dir, "b.jsonl")

	for _, out := range []string{a, b} {
		_, err := Generate(context.Background(), Options{Seed: 7, Namespace: "run3", Count: 25, Output: out})
		require.NoError(t, err)
	}

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestGenerate_KeepsOutputPermissions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(out, nil, 0600))

	_, err := Generate(context.Background(), Options{Seed: 1, Count: 1, Output: out})
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestGenerate_NamespaceIsolation(t *testing.T) {
	dir := t.TempDir()
	entities := func(ns string) map[int64]bool {
		out := filepath.Join(dir, ns+".jsonl")
		_, err := Generate(context.Background(), Options{Seed: 42, Namespace: ns, Count: 50, Output: out})
		require.NoError(t, err)
		set := make(map[int64]bool)
		for _, c := range testutil.Creates(testutil.ReadRecords(t, out)) {
			set[c.EntityID] = true
		}
		return set
	}

	run1 := entities("run1")
	run2 := entities("run2")
	require.Len(t, run1, 50)
	require.Len(t, run2, 50)
	for id := range run1 {
		assert.False(t, run2[id], "entity %d minted by both runs", id)
	}
	assert.True(t, run1[7070930622296892666])
	assert.True(t, run2[5783252534447946539])
}

func TestGenerate_Invariants(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.jsonl")
	_, err := Generate(context.Background(), Options{Seed: 1, Count: 200, Output: out})
	require.NoError(t, err)

	recs := testutil.ReadRecords(t, out)
	require.Len(t, recs, 400)
	testutil.CheckIntegrity(t, recs)

	low := make(map[uint32]bool)
	randoms := make(map[uint32]bool)
	containers := make(map[int64]bool)
	for _, r := range recs {
		rid, ok := r.RandomID()
		require.True(t, ok)
		assert.False(t, randoms[rid], "random id %d reused", rid)
		randoms[rid] = true
		assert.GreaterOrEqual(t, rid, uint32(1))
		assert.LessOrEqual(t, uint64(rid), ids.Space32.Max())

		c, ok := r.(*record.Create)
		if !ok {
			continue
		}
		assert.False(t, containers[c.ContainerID])
		containers[c.ContainerID] = true

		l := uint32(c.EntityID)
		assert.Less(t, l, uint32(1<<31))
		assert.False(t, low[l], "low 32 bits of %d reused", c.EntityID)
		low[l] = true
	}
}

func TestGenerate_StartIndexExtendsRun(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.jsonl")
	tail := filepath.Join(dir, "tail.jsonl")

	_, err := Generate(context.Background(), Options{Seed: 9, Namespace: "run1", Count: 3, Output: full})
	require.NoError(t, err)
	_, err = Generate(context.Background(), Options{Seed: 9, Namespace: "run1", Count: 1, StartIndex: 2, Output: tail})
	require.NoError(t, err)

	fullCreates := testutil.Creates(testutil.ReadRecords(t, full))
	tailCreates := testutil.Creates(testutil.ReadRecords(t, tail))
	require.Len(t, tailCreates, 1)
	assert.Equal(t, fullCreates[2].EntityID, tailCreates[0].EntityID)

	attrs := testutil.Attributes(testutil.ReadRecords(t, tail), tailCreates[0].EntityID)
	require.Len(t, attrs, 1)
	assert.Equal(t, block.String("entity-2"), attrs[0].Payload())
}

func TestGenerate_WithPlan(t *testing.T) {
	plan, err := ParsePlan([]byte(`
table:   "player"
version: 3
attributes: [
	{property: "name", type: "string", value: "p-{index}"},
	{property: "rating", type: "int", derive: true},
	{property: "active", type: "bool", value: true},
]
`), "plan.cue")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.jsonl")
	_, err = Generate(context.Background(), Options{Seed: 42, Count: 2, Output: out, Plan: plan})
	require.NoError(t, err)

	recs := testutil.ReadRecords(t, out)
	require.Len(t, recs, 8)
	for _, r := range recs {
		assert.Equal(t, "player", r.Table())
	}

	e0 := recs[0].(*record.Create).EntityID
	attrs := testutil.Attributes(recs, e0)
	require.Len(t, attrs, 3)
	assert.Equal(t, block.String("p-0"), attrs[0].Payload())
	assert.Equal(t, block.Int(70), attrs[1].Payload())
	assert.Equal(t, block.Bool(true), attrs[2].Payload())

	e1 := recs[4].(*record.Create).EntityID
	assert.Equal(t, block.Int(78), testutil.Attributes(recs, e1)[1].Payload())
}

func TestGenerate_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Generate(ctx, Options{Count: 1})
	assert.Error(t, err)

	_, err = Generate(ctx, Options{Count: -1, Output: filepath.Join(dir, "x.jsonl")})
	assert.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	out := filepath.Join(dir, "canceled.jsonl")
	_, err = Generate(canceled, Options{Count: 5, Output: out})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerate_CreatesOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a", "b", "out.jsonl")
	_, err := Generate(context.Background(), Options{Seed: 1, Count: 1, Output: out})
	require.NoError(t, err)
	assert.FileExists(t, out)
}
