// Package merge combines independently generated record sets into one
// target container.
//
// Sources are processed strictly in the order given. Each source is read
// twice: the first pass parses it completely and plans the id remaps for
// its CreateRecords, the second pass rewrites, filters and appends. A
// source that fails the first pass is skipped without touching the running
// seen sets, so one bad file in a batch never aborts the merge.
//
// Referential integrity is kept by construction: a remapped entity id is
// recorded once in the source's entity map, and every record of that
// entity consults the same map because in the source stream they all still
// carry the old id.
package merge
