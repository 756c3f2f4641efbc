package hint

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scopeprobe/internal/dom"
	"github.com/roach88/scopeprobe/internal/ir"
	"github.com/roach88/scopeprobe/internal/scope"
)

// Tree is the instrumentation state of one scope tree: the scope registry,
// the path watch index, the change notifier and the digest recorder.
//
// Thread-safety: Tree methods are meant to run on the tree's goroutine (see
// scope.Scope.Defer). The registry and index are additionally guarded by a
// mutex so Lookup and Paths may be called from elsewhere.
type Tree struct {
	root      *scope.Scope
	sink      Sink
	clock     clock.Clock
	logger    *slog.Logger
	summarize ir.Summarizer
	session   string
	describer describer

	mu       sync.Mutex
	scopes   *registry
	index    *watchIndex
	detached bool

	rec      *recorder
	notifier *Debouncer
	rechecks atomic.Int64
}

type settings struct {
	clock     clock.Clock
	debounce  time.Duration
	doc       *dom.Document
	class     string
	attrs     []string
	summarize ir.Summarizer
	logger    *slog.Logger
	session   string
}

// Option configures Attach.
type Option func(*settings)

// WithClock sets the clock used for timings and the debounce timer.
// Default: the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithDebounce sets the change notifier window. Default: DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithDocument sets the document link descriptors are read from.
// Default: the host tree's document.
func WithDocument(doc *dom.Document) Option {
	return func(s *settings) { s.doc = doc }
}

// WithMarkerClass sets the class that marks scope-carrying elements.
func WithMarkerClass(class string) Option {
	return func(s *settings) { s.class = class }
}

// WithMarkerAttributes sets the attributes descriptors are built from.
func WithMarkerAttributes(attrs ...string) Option {
	return func(s *settings) { s.attrs = attrs }
}

// WithSummarizer replaces the snapshot function. Default: ir.Summarize.
func WithSummarizer(fn ir.Summarizer) Option {
	return func(s *settings) { s.summarize = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithSession sets the session id reported by Tree.Session.
// Default: a fresh UUIDv7.
func WithSession(id string) Option {
	return func(s *settings) { s.session = id }
}

// Attach instruments the tree rooted at root and publishes to sink.
//
// It registers the root, emits scope:new with a nil parent and installs the
// interceptor. Destroying the root detaches the instrumentation.
func Attach(root *scope.Scope, sink Sink, opts ...Option) *Tree {
	cfg := settings{
		clock:     clock.New(),
		debounce:  DefaultDebounce,
		class:     DefaultMarkerClass,
		attrs:     DefaultMarkerAttributes,
		summarize: ir.Summarize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.doc == nil {
		cfg.doc = root.Document()
	}
	if cfg.session == "" {
		cfg.session = UUIDv7Generator{}.Generate()
	}
	if sink == nil {
		sink = Discard
	}

	t := &Tree{
		root:      root,
		sink:      sink,
		clock:     cfg.clock,
		logger:    cfg.logger.With("session", cfg.session),
		summarize: cfg.summarize,
		session:   cfg.session,
		describer: describer{doc: cfg.doc, class: cfg.class, attrs: cfg.attrs},
		scopes:    newRegistry(),
		index:     newWatchIndex(),
		rec:       newRecorder(cfg.clock),
	}
	t.notifier = NewDebouncer(cfg.clock, cfg.debounce, func() {
		root.Defer(t.scheduledRecheck)
	})

	t.register(root)
	t.emit(ScopeNew{Parent: nil, Child: root.ID()})
	root.Use(&interceptor{t: t})

	t.logger.Info("instrumentation attached", "root", root.ID())
	return t
}

// Root returns the instrumented root scope.
func (t *Tree) Root() *scope.Scope { return t.root }

// Session returns the session id.
func (t *Tree) Session() string { return t.session }

// Notifier returns the change notifier's debouncer.
func (t *Tree) Notifier() *Debouncer { return t.notifier }

// Rechecks returns how many re-checks have run.
func (t *Tree) Rechecks() int64 { return t.rechecks.Load() }

// Detached reports whether the root has been destroyed.
func (t *Tree) Detached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detached
}

// Lookup returns the live scope with the given id.
func (t *Tree) Lookup(id scope.ID) (*scope.Scope, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scopes.lookup(id)
}

// Scopes returns the registered scope ids in creation order.
func (t *Tree) Scopes() []scope.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scopes.ids()
}

// Paths returns the observed paths of a scope in registration order.
func (t *Tree) Paths(id scope.ID) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index.paths(id)
}

// Observe starts observing a dotted path on a scope. See ObserveSegments.
func (t *Tree) Observe(id scope.ID, path string) error {
	return t.ObserveSegments(id, strings.Split(path, "."))
}

// ObserveSegments observes the path and each of its ancestor prefixes.
//
// Every prefix not yet observed is evaluated, snapshotted and reported with
// an initial model:change (no old value). Already observed prefixes are left
// untouched. An empty path observes the scope's own model. Unknown scopes are
// ignored. An evaluation error stops registration and is returned as is.
func (t *Tree) ObserveSegments(id scope.ID, segments []string) error {
	if len(segments) == 0 {
		segments = []string{""}
	}
	s, ok := t.Lookup(id)
	if !ok {
		t.logger.Debug("observe on unknown scope", "scope", id)
		return nil
	}

	for i := 1; i <= len(segments); i++ {
		p := strings.Join(segments[:i], ".")

		t.mu.Lock()
		seen := t.index.has(id, p)
		t.mu.Unlock()
		if seen {
			continue
		}

		get := pathValue(s, p)
		v, err := get()
		if err != nil {
			return err
		}
		snap := t.summarize(v)

		t.mu.Lock()
		stored := !t.detached && t.index.put(&watchEntry{id: id, path: p, get: get, snapshot: snap})
		t.mu.Unlock()
		if !stored {
			continue
		}
		t.emit(ModelChange{ID: id, Path: p, Value: snap})
	}
	return nil
}

func pathValue(s *scope.Scope, path string) pathGetter {
	if path == "" {
		return func() (any, error) {
			return s.Model(), nil
		}
	}
	return func() (any, error) {
		return s.Eval(path)
	}
}

// Unobserve drops every observed path of the scope that starts with prefix.
func (t *Tree) Unobserve(id scope.ID, prefix string) {
	t.mu.Lock()
	removed := t.index.removePrefix(id, prefix)
	t.mu.Unlock()
	if len(removed) > 0 {
		t.logger.Debug("unobserved", "scope", id, "prefix", prefix, "paths", removed)
	}
}

// Assign sets path on the scope inside an apply, so observers are re-checked
// after the debounce window. Unknown scopes are ignored.
func (t *Tree) Assign(id scope.ID, path string, value any) error {
	s, ok := t.Lookup(id)
	if !ok {
		return nil
	}
	return s.Apply(func(sc *scope.Scope) error {
		return sc.Assign(path, value)
	})
}

var inspected atomic.Pointer[scope.Scope]

// Inspect publishes the scope as the process-wide inspected scope.
// Unknown scopes are ignored.
func (t *Tree) Inspect(id scope.ID) {
	if s, ok := t.Lookup(id); ok {
		inspected.Store(s)
	}
}

// Inspected returns the scope most recently passed to Inspect, or nil.
func Inspected() *scope.Scope {
	return inspected.Load()
}

// Recheck re-evaluates every observed path and emits a model:change for each
// one whose snapshot differs from the stored one. Each path is evaluated
// exactly once. The first evaluation error stops the pass and is returned.
func (t *Tree) Recheck() error {
	t.rechecks.Add(1)

	t.mu.Lock()
	entries := t.index.all()
	t.mu.Unlock()

	for _, e := range entries {
		v, err := e.get()
		if err != nil {
			return err
		}
		snap := t.summarize(v)
		if snap == e.snapshot {
			continue
		}

		t.mu.Lock()
		live := t.index.current(e)
		old := e.snapshot
		if live {
			e.snapshot = snap
		}
		t.mu.Unlock()
		if !live {
			continue
		}
		t.emit(ModelChange{ID: e.id, Path: e.path, OldValue: &old, Value: snap})
	}
	return nil
}

func (t *Tree) scheduledRecheck() error {
	if err := t.Recheck(); err != nil {
		t.logger.Error("model recheck failed", "error", err)
		return err
	}
	return nil
}

func (t *Tree) register(s *scope.Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scopes.register(s)
}

func (t *Tree) deregister(id scope.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scopes.remove(id)
	t.index.removeNode(id)
}

func (t *Tree) detach() {
	t.notifier.Stop()

	t.mu.Lock()
	t.detached = true
	t.scopes.clear()
	t.index.clear()
	t.mu.Unlock()

	t.logger.Info("instrumentation detached", "root", t.root.ID())
}

func (t *Tree) emitLink(id scope.ID) {
	t.emit(ScopeLink{ID: id, Descriptor: t.describer.describe(id)})
}

// linkLater emits the link event of a freshly created scope, unless it was
// destroyed before the lookup ran.
func (t *Tree) linkLater(id scope.ID) {
	if _, ok := t.Lookup(id); !ok {
		return
	}
	t.emitLink(id)
}

func (t *Tree) emit(ev Event) {
	t.sink.Emit(ev)
}
