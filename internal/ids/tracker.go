package ids

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxBumps caps the bump-suffix retries of a single allocation.
const MaxBumps = 10_000

// ErrIDSpaceExhausted is returned when no free id was found within MaxBumps.
var ErrIDSpaceExhausted = errors.New("id space exhausted")

// ExhaustedError carries the label that could not be allocated.
type ExhaustedError struct {
	Label    string
	Space    Space
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: no free %s id for %q after %d attempts", ErrIDSpaceExhausted, e.Space, e.Label, e.Attempts)
}

// Is makes errors.Is(err, ErrIDSpaceExhausted) match.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrIDSpaceExhausted
}

// Set is a set of allocated ids within one space.
type Set map[uint64]struct{}

// Has reports whether v is in the set.
func (s Set) Has(v uint64) bool {
	_, ok := s[v]
	return ok
}

// Add inserts v.
func (s Set) Add(v uint64) {
	s[v] = struct{}{}
}

// Predicate is an extra acceptance test for a candidate id.
type Predicate func(uint64) bool

// bumpLabel returns label for attempt 0 and "label|n" afterwards.
func bumpLabel(label string, n int) string {
	if n == 0 {
		return label
	}
	return label + "|" + strconv.Itoa(n)
}

// Allocate derives ids for label, "label|1", "label|2", ... until one is
// absent from used and satisfies pred (when non-nil). The accepted id is
// inserted into used.
func Allocate(seed int64, namespace string, index int64, label string, space Space, used Set, pred Predicate) (uint64, error) {
	for n := 0; n < MaxBumps; n++ {
		v := Derive(seed, namespace, index, bumpLabel(label, n), space)
		if used.Has(v) {
			continue
		}
		if pred != nil && !pred(v) {
			continue
		}
		used.Add(v)
		return v, nil
	}
	return 0, &ExhaustedError{Label: label, Space: space, Attempts: MaxBumps}
}

// LowBitsBelow31 reports whether the low 32 bits of v are below 2^31.
// Entity ids must satisfy this for the downstream format.
func LowBitsBelow31(v uint64) bool {
	return uint32(v) < 1<<31
}

// Tracker holds the per-run used sets for one (seed, namespace) pair.
// A Tracker is not safe for concurrent use.
type Tracker struct {
	Seed      int64
	Namespace string

	entities    Set
	entityLow32 map[uint32]struct{}
	creates     Set
	randoms     Set
}

// NewTracker creates an empty tracker.
func NewTracker(seed int64, namespace string) *Tracker {
	return &Tracker{
		Seed:        seed,
		Namespace:   namespace,
		entities:    make(Set),
		entityLow32: make(map[uint32]struct{}),
		creates:     make(Set),
		randoms:     make(Set),
	}
}

// EntityID allocates the entity id for index. Its low 32 bits are below 2^31
// and unique among the entity ids of this tracker.
func (t *Tracker) EntityID(index int64) (int64, error) {
	v, err := Allocate(t.Seed, t.Namespace, index, "entity", Space64, t.entities, func(v uint64) bool {
		if !LowBitsBelow31(v) {
			return false
		}
		_, taken := t.entityLow32[uint32(v)]
		return !taken
	})
	if err != nil {
		return 0, err
	}
	t.entityLow32[uint32(v)] = struct{}{}
	return int64(v), nil
}

// CreateID allocates the CreateRecord container id for index.
func (t *Tracker) CreateID(index int64) (int64, error) {
	v, err := Allocate(t.Seed, t.Namespace, index, "create", Space64, t.creates, nil)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// RandomID allocates a 32-bit per-record random id for (index, label).
func (t *Tracker) RandomID(index int64, label string) (uint32, error) {
	v, err := Allocate(t.Seed, t.Namespace, index, "random|"+label, Space32, t.randoms, nil)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
