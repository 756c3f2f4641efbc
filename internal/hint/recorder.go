package hint

import (
	"slices"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scopeprobe/internal/scope"
)

// cycle is the timeline of one in-flight digest.
//
// Phases: pre-watch until the first watcher starts, watching while watchers
// are evaluated, and post-digest once the first deferred task is shifted.
type cycle struct {
	id    scope.ID
	start time.Time

	events []*timedWatch
	open   *timedWatch

	preWatch    time.Duration
	preWatchSet bool

	postStart   time.Time
	postStarted bool
}

type timedWatch struct {
	ev    WatchEvent
	start time.Time
}

// recorder builds digest timelines. Digests may nest (a listener can digest a
// subtree), so in-flight cycles form a stack and watch activity is charged
// to the innermost one.
type recorder struct {
	clock clock.Clock
	stack []*cycle
}

func newRecorder(clk clock.Clock) *recorder {
	return &recorder{clock: clk}
}

func (r *recorder) current() *cycle {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

// begin opens a cycle for a digest started on id.
func (r *recorder) begin(id scope.ID) *cycle {
	c := &cycle{id: id, start: r.clock.Now()}
	r.stack = append(r.stack, c)
	return c
}

// abort drops c without producing a summary.
func (r *recorder) abort(c *cycle) {
	r.pop(c)
}

func (r *recorder) pop(c *cycle) {
	if i := slices.Index(r.stack, c); i >= 0 {
		r.stack = slices.Delete(r.stack, i, i+1)
	}
}

// watchStarted closes the open watch event of the innermost cycle and opens
// one for label. It returns nil when no digest is in flight.
func (r *recorder) watchStarted(id scope.ID, label string) *timedWatch {
	c := r.current()
	if c == nil {
		return nil
	}
	now := r.clock.Now()
	c.complete(now)
	c.postStarted = false
	c.open = &timedWatch{
		ev: WatchEvent{
			EventType: TypeScopeWatch,
			ID:        id,
			Watch:     label,
		},
		start: now,
	}
	return c.open
}

// reactionDone ends a reaction phase of the innermost cycle.
func (r *recorder) reactionDone(c *cycle) {
	if c != nil {
		c.postStarted = false
	}
}

// shifted marks the start of post-digest draining the first time a deferred
// task is taken from the queue since the last watcher.
func (r *recorder) shifted() {
	c := r.current()
	if c == nil || c.postStarted {
		return
	}
	c.postStart = r.clock.Now()
	c.postStarted = true
}

// end closes c and returns its summary.
func (r *recorder) end(c *cycle) ScopeDigest {
	now := r.clock.Now()
	r.pop(c)

	c.complete(now)

	var post time.Duration
	if c.postStarted {
		if n := len(c.events); n > 0 {
			last := c.events[n-1]
			last.ev.DigestTime = Duration(c.postStart.Sub(last.start))
		} else {
			c.preWatch = c.postStart.Sub(c.start)
		}
		post = now.Sub(c.postStart)
	}

	events := make([]WatchEvent, len(c.events))
	for i, w := range c.events {
		events[i] = w.ev
	}
	return ScopeDigest{
		ID:                  c.id,
		Time:                Duration(now.Sub(c.start)),
		Events:              events,
		PostDigestQueueTime: Duration(post),
		PreWatchTime:        Duration(c.preWatch),
	}
}

// complete finalizes the open watch event at now, or records the pre-watch
// time if no watcher has started yet.
func (c *cycle) complete(now time.Time) {
	if c.open != nil {
		c.open.ev.DigestTime = Duration(now.Sub(c.open.start))
		c.events = append(c.events, c.open)
		c.open = nil
		return
	}
	if !c.preWatchSet {
		c.preWatch = now.Sub(c.start)
		c.preWatchSet = true
	}
}

// wrap returns w with its getter and listener timed.
func (r *recorder) wrap(w scope.Watch) scope.Watch {
	label := w.Label()
	inner := w.Get
	if inner == nil {
		expr := w.Expr
		inner = func(s *scope.Scope) (any, error) {
			return s.Eval(expr)
		}
	}

	wrapped := w
	wrapped.Get = func(s *scope.Scope) (any, error) {
		tw := r.watchStarted(s.ID(), label)
		if tw == nil {
			return inner(s)
		}
		start := r.clock.Now()
		v, err := inner(s)
		tw.ev.WatchExpressionTime = Duration(r.clock.Since(start))
		return v, err
	}

	if listener := w.Listener; listener != nil {
		wrapped.Listener = func(newValue, oldValue any, s *scope.Scope) error {
			c := r.current()
			var tw *timedWatch
			if c != nil {
				tw = c.open
			}
			start := r.clock.Now()
			err := listener(newValue, oldValue, s)
			if tw != nil {
				tw.ev.ReactionFunctionTime = Duration(r.clock.Since(start))
			}
			r.reactionDone(c)
			return err
		}
	}
	return wrapped
}
