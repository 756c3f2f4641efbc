// Package ir provides the bounded value representation used to compare model
// snapshots without holding on to live object graphs.
//
// A live value read from a scope is reduced by Summarize to a one-level
// summary built from the sealed Value types, then rendered as canonical JSON.
// The canonical text is the Snapshot: two snapshots are equal exactly when
// their summaries are equal, so change detection is a string comparison.
//
// This package imports nothing internal. Every other package that needs to
// compare or persist model values goes through it.
//
// Key constraints:
//   - Summaries never descend more than one level, so cyclic inputs are safe
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalized at the serialization boundary
package ir
