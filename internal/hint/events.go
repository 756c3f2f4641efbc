package hint

import (
	"strconv"
	"time"

	"github.com/roach88/scopeprobe/internal/ir"
	"github.com/roach88/scopeprobe/internal/scope"
)

// Event type tags as they appear on the feed.
const (
	TypeScopeNew     = "scope:new"
	TypeScopeLink    = "scope:link"
	TypeScopeDigest  = "scope:digest"
	TypeScopeDestroy = "scope:destroy"
	TypeScopeWatch   = "scope:watch"
	TypeModelChange  = "model:change"
)

// Event is anything the instrumentation publishes.
type Event interface {
	Type() string
}

// ScopeNew reports a created scope. Parent is nil for the root.
type ScopeNew struct {
	Parent *scope.ID `json:"parent"`
	Child  scope.ID  `json:"child"`
}

// ScopeLink carries the human-readable descriptor of a scope.
type ScopeLink struct {
	ID         scope.ID `json:"id"`
	Descriptor string   `json:"descriptor"`
}

// ScopeDigest summarizes one completed digest.
type ScopeDigest struct {
	ID                  scope.ID     `json:"id"`
	Time                Duration     `json:"time"`
	Events              []WatchEvent `json:"events"`
	PostDigestQueueTime Duration     `json:"postDigestQueueTime"`
	PreWatchTime        Duration     `json:"preWatchTime"`
}

// WatchEvent is one watcher's participation in a digest.
//
// DigestTime runs from the start of this watcher's evaluation to the start of
// the next one (or to the end of the digest), so the watch times of a digest
// add up with PreWatchTime and PostDigestQueueTime to its total Time.
type WatchEvent struct {
	EventType            string   `json:"eventType"`
	ID                   scope.ID `json:"id"`
	Watch                string   `json:"watch"`
	DigestTime           Duration `json:"digestTime"`
	WatchExpressionTime  Duration `json:"watchExpressionTime"`
	ReactionFunctionTime Duration `json:"reactionFunctionTime"`
}

// ScopeDestroy reports a destroyed scope.
type ScopeDestroy struct {
	ID scope.ID `json:"id"`
}

// ModelChange reports an observed path. OldValue is nil on the initial
// observation and set on a transition.
type ModelChange struct {
	ID       scope.ID     `json:"id"`
	Path     string       `json:"path"`
	OldValue *ir.Snapshot `json:"oldValue,omitempty"`
	Value    ir.Snapshot  `json:"value"`
}

func (ScopeNew) Type() string     { return TypeScopeNew }
func (ScopeLink) Type() string    { return TypeScopeLink }
func (ScopeDigest) Type() string  { return TypeScopeDigest }
func (ScopeDestroy) Type() string { return TypeScopeDestroy }
func (ModelChange) Type() string  { return TypeModelChange }

// Initial reports whether the change is a first observation.
func (m ModelChange) Initial() bool { return m.OldValue == nil }

// ScopeID returns the scope an event is about.
func ScopeID(ev Event) scope.ID {
	switch e := ev.(type) {
	case ScopeNew:
		return e.Child
	case ScopeLink:
		return e.ID
	case ScopeDigest:
		return e.ID
	case ScopeDestroy:
		return e.ID
	case ModelChange:
		return e.ID
	}
	return 0
}

// Duration is a time.Duration that travels as fractional milliseconds.
type Duration time.Duration

// Milliseconds returns d in fractional milliseconds.
func (d Duration) Milliseconds() float64 {
	return float64(d) / float64(time.Millisecond)
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON encodes d as milliseconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, d.Milliseconds(), 'f', -1, 64), nil
}

// UnmarshalJSON decodes milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*d = Duration(ms * float64(time.Millisecond))
	return nil
}
