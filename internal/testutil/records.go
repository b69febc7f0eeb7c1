// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dbforge/internal/block"
	"github.com/roach88/dbforge/internal/container"
	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/record"
)

// Table is the table_type used by fixture records.
const Table = "entity"

// randomID gives fixture records distinct but stable random ids.
func randomID(id int64, label string) uint32 {
	return uint32(ids.Derive(id, "fixture", 0, label, ids.Space32))
}

// Create builds a CreateRecord with container id c minting entity e.
func Create(c, e int64) *record.Create {
	return record.NewCreate(Table, c, e, 1, randomID(c, "create"))
}

// Attr builds a string attribute record for entity e.
func Attr(e int64, property, value string) *record.Attribute {
	return record.NewAttribute(Table, property, e, block.String(value), 1, randomID(e, property+"="+value))
}

// Entity builds a CreateRecord followed by one attribute per value,
// named attr0, attr1, ...
func Entity(c, e int64, values ...string) []record.Record {
	recs := []record.Record{Create(c, e)}
	for i, v := range values {
		recs = append(recs, Attr(e, "attr"+string(rune('0'+i)), v))
	}
	return recs
}

// Concat flattens record groups.
func Concat(groups ...[]record.Record) []record.Record {
	var out []record.Record
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// WriteRecords writes recs as a container at path.
func WriteRecords(t testing.TB, path string, recs ...record.Record) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := container.NewWriter(f)
	require.NoError(t, record.Write(w, recs...))
	require.NoError(t, w.Flush())
}

// ReadRecords loads every record at path.
func ReadRecords(t testing.TB, path string) []record.Record {
	t.Helper()
	recs, err := record.ReadFile(path)
	require.NoError(t, err)
	return recs
}

// Creates returns the CreateRecords in recs, in order.
func Creates(recs []record.Record) []*record.Create {
	var out []*record.Create
	for _, r := range recs {
		if c, ok := r.(*record.Create); ok {
			out = append(out, c)
		}
	}
	return out
}

// Attributes returns the attribute records of entity e, in order.
func Attributes(recs []record.Record, e int64) []*record.Attribute {
	var out []*record.Attribute
	for _, r := range recs {
		if a, ok := r.(*record.Attribute); ok && a.EntityID == e {
			out = append(out, a)
		}
	}
	return out
}

// Minted returns how many CreateRecords in recs mint entity e.
func Minted(recs []record.Record, e int64) int {
	n := 0
	for _, c := range Creates(recs) {
		if c.EntityID == e {
			n++
		}
	}
	return n
}

// CheckIntegrity asserts that every attribute references exactly one
// CreateRecord's minted id.
func CheckIntegrity(t testing.TB, recs []record.Record) {
	t.Helper()
	minted := make(map[int64]int)
	for _, c := range Creates(recs) {
		minted[c.EntityID]++
	}
	for _, r := range recs {
		a, ok := r.(*record.Attribute)
		if !ok {
			continue
		}
		require.Equalf(t, 1, minted[a.EntityID],
			"attribute %q references entity %d minted %d times", a.Property(), a.EntityID, minted[a.EntityID])
	}
}

// Rand returns a deterministic generator for remap draws.
func Rand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
