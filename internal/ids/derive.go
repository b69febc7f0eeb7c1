package ids

import (
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"
)

// Space selects the value range of a derived id.
type Space int

const (
	// Space32 ids fall in [1, 2^31-2]. Used for per-record random ids.
	Space32 Space = iota
	// Space64 ids fall in [1, 2^63-2]. Used for entity and create-record ids.
	Space64
)

const (
	range32 = 1<<31 - 1
	range64 = 1<<63 - 1
)

// Range returns the exclusive upper bound RANGE of the space.
// Derived values lie in [1, RANGE-1].
func (s Space) Range() uint64 {
	if s == Space32 {
		return range32
	}
	return range64
}

// Max returns the largest value Derive can produce in the space.
func (s Space) Max() uint64 {
	return s.Range() - 1
}

func (s Space) String() string {
	if s == Space32 {
		return "32-bit"
	}
	return "64-bit"
}

// Input formats the hash input "{seed}|{namespace}|{index}|{label}".
func Input(seed int64, namespace string, index int64, label string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(seed, 10))
	b.WriteByte('|')
	b.WriteString(namespace)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(index, 10))
	b.WriteByte('|')
	b.WriteString(label)
	return b.String()
}

// Derive maps (seed, namespace, index, label) to an id in space.
//
// The SHA-256 digest of Input(...) is read as a big-endian unsigned integer,
// reduced modulo RANGE-1, and shifted up by one, so the result is never 0.
func Derive(seed int64, namespace string, index int64, label string, space Space) uint64 {
	sum := sha256.Sum256([]byte(Input(seed, namespace, index, label)))

	n := new(big.Int).SetBytes(sum[:])
	n.Mod(n, new(big.Int).SetUint64(space.Range()-1))
	return n.Uint64() + 1
}
