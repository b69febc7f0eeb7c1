// Package ids derives deterministic identifiers for generated entities.
//
// Every identifier is a pure function of (seed, namespace, index, label):
// the same inputs always give the same id, across runs and machines. There
// is no PRNG anywhere in this package. The namespace is a per-run salt from
// internal/registry that keeps two runs sharing a seed from colliding.
//
// The Tracker adds per-run uniqueness on top of Derive by retrying with a
// bump suffix ("label|1", "label|2", ...). Retries are capped at MaxBumps;
// running out returns ErrIDSpaceExhausted instead of looping forever.
package ids
