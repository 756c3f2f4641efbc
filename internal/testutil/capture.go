package testutil

import (
	"sync"

	"github.com/roach88/scopeprobe/internal/hint"
)

// Capture is a hint.Sink that records every event for later assertions.
//
// Thread-safety: Capture is safe for concurrent use via internal mutex.
type Capture struct {
	mu     sync.Mutex
	events []hint.Event
}

// NewCapture creates an empty capture sink.
func NewCapture() *Capture {
	return &Capture{}
}

// Emit implements hint.Sink.
func (c *Capture) Emit(ev hint.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything captured so far.
func (c *Capture) Events() []hint.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]hint.Event(nil), c.events...)
}

// Types returns the type tags of the captured events in order.
func (c *Capture) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type()
	}
	return out
}

// Digests returns the captured scope:digest events.
func (c *Capture) Digests() []hint.ScopeDigest {
	return OfType[hint.ScopeDigest](c)
}

// Changes returns the captured model:change events.
func (c *Capture) Changes() []hint.ModelChange {
	return OfType[hint.ModelChange](c)
}

// Reset drops everything captured so far.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// OfType returns the captured events of concrete type T.
func OfType[T hint.Event](c *Capture) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, ev := range c.events {
		if e, ok := ev.(T); ok {
			out = append(out, e)
		}
	}
	return out
}

// FixedSessionGenerator returns the same session id every time, so repeated
// runs of a scenario record byte-identical feeds.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id. An empty id becomes
// "test-session".
func NewFixedSessionGenerator(id string) FixedSessionGenerator {
	if id == "" {
		id = "test-session"
	}
	return FixedSessionGenerator{id: id}
}

// Generate returns the fixed id.
func (g FixedSessionGenerator) Generate() string {
	return g.id
}
