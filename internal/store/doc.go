// Package store provides SQLite-backed durable storage for recorded
// instrumentation feeds.
//
// A feed is recorded per session (the id stamped on a hint.Tree). Each event
// is stored once with:
//   - session and seq: position in the feed, UNIQUE(session_id, seq)
//   - type and scope_id: the event tag and the scope it concerns
//   - payload: the event's JSON payload (HTML escaping disabled)
//   - id: a content-addressed id from ir.EventID
//
// Writes use ON CONFLICT DO NOTHING, so recording the same feed twice is a
// no-op. All reads are ordered by seq; wall time is never stored.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
