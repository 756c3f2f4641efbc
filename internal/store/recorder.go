package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/scopeprobe/internal/hint"
)

// Recorder is a hint.Sink that appends every event to a session.
//
// Sinks cannot fail the instrumented tree, so write errors are logged and
// the first one is kept for Err. Sequence numbers continue after the last
// recorded event, so reopening a session appends to it.
//
// Thread-safety: Emit is serialized by an internal mutex.
type Recorder struct {
	store   *Store
	ctx     context.Context
	session string
	logger  *slog.Logger

	mu      sync.Mutex
	seq     int64
	written int64
	err     error
}

// NewRecorder creates the session if needed and returns a recorder for it.
// ctx bounds every write made by the recorder.
func NewRecorder(ctx context.Context, st *Store, session, label string) (*Recorder, error) {
	if err := st.CreateSession(ctx, session, label); err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	last, err := st.LastSeq(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("new recorder: %w", err)
	}
	return &Recorder{
		store:   st,
		ctx:     ctx,
		session: session,
		logger:  slog.Default().With("session", session),
		seq:     last,
	}, nil
}

// WithLogger sets the logger used for write failures.
func (r *Recorder) WithLogger(l *slog.Logger) *Recorder {
	r.logger = l.With("session", r.session)
	return r
}

// Session returns the session events are recorded under.
func (r *Recorder) Session() string { return r.session }

var _ hint.Sink = (*Recorder)(nil)

// Emit implements hint.Sink.
func (r *Recorder) Emit(ev hint.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	_, inserted, err := r.store.WriteEvent(r.ctx, r.session, r.seq, ev)
	if err != nil {
		r.logger.Error("record event failed", "seq", r.seq, "type", ev.Type(), "error", err)
		if r.err == nil {
			r.err = err
		}
		return
	}
	if !inserted {
		r.logger.Warn("event position already recorded", "seq", r.seq, "type", ev.Type())
		return
	}
	r.written++
}

// Written returns how many events were stored.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
