// Package store persists reading progress.
//
// # Architecture
//
// Every backend exposes the same flat per-identity map through the
// ProgressStore interface:
//
//   - LocalStore: the anonymous reader's map, one JSON entry in a KV
//     (MemoryKV in tests and degraded mode, FileKV on disk)
//   - SQLiteStore.ScopedTo: one principal's map on the gateway
//   - MockStore: in-memory map with failure injection for tests
//
// The remote store used by clients lives in the client package and
// satisfies the same interface over HTTP.
//
// # SQLite schema
//
//   - principals: reader identities that tokens are issued for
//   - articles: the catalog backing public metadata lookups
//   - progress: one row per (principal, article) holding the record
//
// Timestamps are stored as fixed-width RFC 3339 strings in UTC so that
// ordering by updated_at is lexical. Schema changes are applied by
// idempotent column migrations at startup.
//
// # Errors
//
// ErrNotFound is returned for missing rows and records. ErrUnavailable
// wraps KV failures so callers can treat storage as degraded.
package store
