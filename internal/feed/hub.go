package feed

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/scopeprobe/internal/hint"
)

const (
	defaultBufferSize  = 256
	defaultHistorySize = 512
)

// HubOptions configures a Hub. Zero values select defaults.
type HubOptions struct {
	// BufferSize is the per-subscriber channel capacity.
	BufferSize int
	// HistorySize is how many recent envelopes new subscribers receive.
	// Negative disables history.
	HistorySize int
	Logger      *slog.Logger
}

// Hub broadcasts envelopes to subscribers. It is a hint.Sink.
//
// Thread-safety: all methods are safe for concurrent use.
type Hub struct {
	opts   HubOptions
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[uint64]chan Envelope
	nextID    uint64
	closed    bool
	history   []Envelope
	historyAt int
	full      bool

	published atomic.Int64
	dropped   atomic.Int64
}

var _ hint.Sink = (*Hub)(nil)

// NewHub creates a hub.
func NewHub(opts HubOptions) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.HistorySize == 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Hub{
		opts:   opts,
		logger: opts.Logger,
		subs:   make(map[uint64]chan Envelope),
	}
	if opts.HistorySize > 0 {
		h.history = make([]Envelope, opts.HistorySize)
	}
	return h
}

// Emit implements hint.Sink.
func (h *Hub) Emit(ev hint.Event) {
	env, err := Encode(ev)
	if err != nil {
		h.logger.Error("feed encode failed", "type", ev.Type(), "error", err)
		return
	}
	h.Publish(env)
}

// Publish delivers env to every subscriber without blocking.
func (h *Hub) Publish(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	h.remember(env)

	for id, ch := range h.subs {
		select {
		case ch <- env:
		default:
			if h.dropped.Add(1) == 1 {
				h.logger.Warn("feed subscriber too slow, dropping events", "subscriber", id)
			}
		}
	}
}

// Subscribe registers a subscriber. The channel first carries the recent
// history, then live envelopes. cancel unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan Envelope, func()) {
	ch := make(chan Envelope, h.opts.BufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	for _, env := range h.recent() {
		select {
		case ch <- env:
		default:
			h.dropped.Add(1)
		}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Published returns how many envelopes were published.
func (h *Hub) Published() int64 { return h.published.Load() }

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) remember(env Envelope) {
	if len(h.history) == 0 {
		return
	}
	h.history[h.historyAt] = env
	h.historyAt = (h.historyAt + 1) % len(h.history)
	if h.historyAt == 0 {
		h.full = true
	}
}

// recent returns the history oldest first.
func (h *Hub) recent() []Envelope {
	if !h.full {
		return h.history[:h.historyAt]
	}
	out := make([]Envelope, 0, len(h.history))
	out = append(out, h.history[h.historyAt:]...)
	return append(out, h.history[:h.historyAt]...)
}
