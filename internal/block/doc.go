// Package block provides the typed record-block tree used by database change
// containers.
//
// A container is an ordered sequence of named, typed blocks. Leaves carry one
// of a small closed set of types; a record block nests an ordered list of
// fields. This package knows nothing about what the fields mean. Field names
// with meaning (db_unique_id, property, ...) are interpreted in
// internal/record.
//
// Key constraints:
//   - NO float types anywhere - numbers are int64 or uint64
//   - Field order inside a record is significant and always preserved
//   - Content hashes are computed over the canonical encoding only
package block
