// Package store provides SQLite-backed durable storage for dbforge.
//
// The store holds two things:
//   - Run registry: the monotonic run-serial counter and one row per reserved
//     generation run (the transactional backend of internal/registry)
//   - Merge ledger: one row per completed merge invocation
//
// # Critical Patterns
//
// Serial reservation is a single UPDATE ... RETURNING inside a transaction,
// so two processes sharing a database can never observe the same serial.
//
// Ledger rows are ordered by seq INTEGER (insertion order), never by
// timestamps, so listings are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
