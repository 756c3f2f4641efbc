package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
)

// Record is one stored feed event.
type Record struct {
	ID      string          `json:"id"`
	Session string          `json:"session"`
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	ScopeID scope.ID        `json:"scope_id"`
	Payload json.RawMessage `json:"payload"`
}

// Event decodes the payload into its hint event type.
func (r Record) Event() (hint.Event, error) {
	return unmarshalEvent(r.Type, r.Payload)
}

// SessionInfo summarizes a recorded session.
type SessionInfo struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Events  int64  `json:"events"`
	LastSeq int64  `json:"last_seq"`
}

const selectEvents = `
	SELECT id, session_id, seq, type, scope_id, payload
	FROM events
`

// ReadSession returns every event of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadSession(ctx context.Context, session string) ([]Record, error) {
	return s.queryRecords(ctx, selectEvents+`
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
}

// ReadScope returns the events of a session that concern one scope.
func (s *Store) ReadScope(ctx context.Context, session string, id scope.ID) ([]Record, error) {
	return s.queryRecords(ctx, selectEvents+`
		WHERE session_id = ? AND scope_id = ?
		ORDER BY seq ASC
	`, session, int64(id))
}

// ReadSessionTypes returns the events of a session whose type is one of
// types. With no types it behaves like ReadSession.
func (s *Store) ReadSessionTypes(ctx context.Context, session string, types ...string) ([]Record, error) {
	if len(types) == 0 {
		return s.ReadSession(ctx, session)
	}
	args := make([]any, 0, len(types)+1)
	args = append(args, session)
	for _, t := range types {
		args = append(args, t)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
	return s.queryRecords(ctx, selectEvents+`
		WHERE session_id = ? AND type IN (`+placeholders+`)
		ORDER BY seq ASC
	`, args...)
}

// LastSeq returns the highest recorded seq of a session, or 0.
func (s *Store) LastSeq(ctx context.Context, session string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE session_id = ?
	`, session).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// Sessions lists recorded sessions ordered by id.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, COUNT(e.id), COALESCE(MAX(e.seq), 0)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Label, &info.Events, &info.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec     Record
		scopeID int64
		payload string
	)
	if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &rec.Type, &scopeID, &payload); err != nil {
		return Record{}, fmt.Errorf("scan event: %w", err)
	}
	rec.ScopeID = scope.ID(scopeID)
	rec.Payload = json.RawMessage(payload)
	return rec, nil
}
