package harness

import (
	"encoding/json"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
)

// TraceEvent is one published event in feed order.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Session is the session id the run was stamped with.
	Session string `json:"session"`

	// Trace contains every published event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tree is the instrumentation after the last step. Serving the tree
	// further requires running Root's loop.
	Tree *hint.Tree `json:"-"`

	// Root is the host tree's root scope.
	Root *scope.Scope `json:"-"`

	// Clock is the mock clock the run was driven by. It only moves when
	// advanced.
	Clock *clock.Mock `json:"-"`

	events []hint.Event
}

// NewResult creates a new passing result.
func NewResult(session string) *Result {
	return &Result{
		Pass:    true,
		Session: session,
		Trace:   []TraceEvent{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the published events as typed values.
func (r *Result) Events() []hint.Event {
	return append([]hint.Event(nil), r.events...)
}

// Digests returns the published scope:digest events of id in order.
func (r *Result) Digests(id scope.ID) []hint.ScopeDigest {
	var out []hint.ScopeDigest
	for _, ev := range r.events {
		if d, ok := ev.(hint.ScopeDigest); ok && d.ID == id {
			out = append(out, d)
		}
	}
	return out
}
