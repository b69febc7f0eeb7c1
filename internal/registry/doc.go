// Package registry hands out per-run namespaces.
//
// Each generation run folds a namespace token ("run<serial>") into every id
// it derives. The registry is a persisted monotonic counter, so two runs that
// reuse a seed still get distinct namespaces and cannot mint colliding ids.
//
// Backends:
//   - File: a small JSON document, read-modify-written under an advisory
//     lock and replaced atomically (temp file + rename)
//   - SQLite: internal/store, for paths ending in .db or .sqlite
//   - Memory: an in-process fake for tests
//
// A malformed registry is an error. It is never reset silently, since that
// would hand out namespaces that were already used.
package registry
