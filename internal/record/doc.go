// Package record interprets top-level container blocks as database change
// records.
//
// A record is one of two variants:
//
//   - *Attribute: an ordinary record whose db_unique_id is the owning entity id
//   - *Create: the record that mints an entity. Its own db_unique_id is the
//     container id; the minted entity id lives in value.db_unique_id
//
// This is the only package that knows which leaves carry identifiers.
// Everything downstream pattern-matches on the variant instead of scanning
// field names. Rewriting an id never touches any other field.
package record
