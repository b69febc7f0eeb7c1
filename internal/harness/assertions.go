package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/dbforge/internal/ids"
	"github.com/roach88/dbforge/internal/record"
	"github.com/roach88/dbforge/internal/testutil"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Records  int    // Output size, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "  Output records: %d", e.Records)
	return buf.String()
}

// EvaluateAssertions runs every assertion against recs and returns the
// failure messages.
func EvaluateAssertions(recs []record.Record, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(recs, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(recs []record.Record, a Assertion) error {
	switch a.Type {
	case AssertIntegrity:
		return assertIntegrity(recs)
	case AssertRecordCount:
		return expectCount(a.Type, "records", a.Count, len(recs), len(recs))
	case AssertMinted:
		return expectCount(a.Type, fmt.Sprintf("CreateRecords for entity %d", a.Entity),
			a.Count, testutil.Minted(recs, a.Entity), len(recs))
	case AssertAttributes:
		return expectCount(a.Type, fmt.Sprintf("attributes on entity %d", a.Entity),
			a.Count, len(testutil.Attributes(recs, a.Entity)), len(recs))
	case AssertEntityIDs:
		return assertEntityIDs(recs)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func expectCount(typ, what string, want, got, total int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Records:  total,
	}
}

// assertIntegrity checks every attribute references an entity minted by
// exactly one CreateRecord.
func assertIntegrity(recs []record.Record) error {
	minted := make(map[int64]int)
	for _, c := range testutil.Creates(recs) {
		minted[c.EntityID]++
	}
	for _, r := range recs {
		a, ok := r.(*record.Attribute)
		if !ok || minted[a.EntityID] == 1 {
			continue
		}
		return &AssertionError{
			Type:     AssertIntegrity,
			Expected: fmt.Sprintf("attribute %q on an entity minted once", a.Property()),
			Actual:   fmt.Sprintf("entity %d minted %d times", a.EntityID, minted[a.EntityID]),
			Records:  len(recs),
		}
	}
	return nil
}

func assertEntityIDs(recs []record.Record) error {
	for _, c := range testutil.Creates(recs) {
		if !ids.LowBitsBelow31(uint64(c.EntityID)) {
			return &AssertionError{
				Type:     AssertEntityIDs,
				Expected: "entity ids with low 32 bits below 2^31",
				Actual:   fmt.Sprintf("entity %d", c.EntityID),
				Records:  len(recs),
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
