package store

import (
	"context"
	"fmt"

	"github.com/roach88/scopeprobe/internal/hint"
)

// Replay decodes the recorded events of a session and emits them to sink in
// seq order. It returns the number of events emitted.
//
// A payload that fails to decode stops the replay; events before it have
// already been emitted.
func (s *Store) Replay(ctx context.Context, session string, sink hint.Sink) (int, error) {
	records, err := s.ReadSession(ctx, session)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", session, err)
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		ev, err := rec.Event()
		if err != nil {
			return i, fmt.Errorf("replay %s: seq %d: %w", session, rec.Seq, err)
		}
		sink.Emit(ev)
	}
	return len(records), nil
}
