// Package persistence provides the durable output store.
//
// Output records (identity, type, addressing, settings and sort order) are
// kept in SQLite so they survive restarts. Observed output state is never
// persisted; it is rebuilt as unreachable on startup.
package persistence
