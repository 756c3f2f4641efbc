package store

import (
	"context"
	"fmt"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/ir"
)

// CreateSession registers a session so events can be recorded under it.
// Uses ON CONFLICT(id) DO NOTHING; an existing session keeps its label.
func (s *Store) CreateSession(ctx context.Context, id, label string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, label)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteEvent records ev at position seq of session and returns the stored
// record. inserted is false when the position was already taken, in which
// case nothing is written.
//
// The session must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, session string, seq int64, ev hint.Event) (rec Record, inserted bool, err error) {
	payload, err := marshalPayload(ev)
	if err != nil {
		return Record{}, false, fmt.Errorf("write event: %w", err)
	}

	id, err := ir.EventID(session, seq, ev.Type(), []byte(payload))
	if err != nil {
		return Record{}, false, fmt.Errorf("write event: %w", err)
	}

	rec = Record{
		ID:      id,
		Session: session,
		Seq:     seq,
		Type:    ev.Type(),
		ScopeID: hint.ScopeID(ev),
		Payload: []byte(payload),
	}

	// ON CONFLICT DO NOTHING covers both a re-recorded event (same id) and a
	// different event at an occupied position (same session, seq).
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, session_id, seq, type, scope_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.Session,
		rec.Seq,
		rec.Type,
		int64(rec.ScopeID),
		payload,
	)
	if err != nil {
		return Record{}, false, fmt.Errorf("write event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return Record{}, false, fmt.Errorf("write event: rows affected: %w", err)
	}
	return rec, rows > 0, nil
}
