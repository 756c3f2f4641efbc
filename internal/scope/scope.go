package scope

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/scopeprobe/internal/dom"
)

// ID identifies a scope within its tree.
type ID int64

// Scope is one node of a scope tree.
//
// Thread-safety: a Scope must only be used from the goroutine that owns its
// tree. Defer is the exception and may be called from anywhere.
type Scope struct {
	id        ID
	parent    *Scope
	t         *tree
	model     map[string]any
	children  []*Scope
	watchers  []*watcher
	destroyed bool
}

type tree struct {
	root         *Scope
	ids          *Sequence
	interceptors []Interceptor
	postDigest   *queue[func()]
	ticks        *queue[Task]
	ttl          int
	doc          *dom.Document
	logger       *slog.Logger
	exprs        map[string]*Expression
}

// Option configures a new tree.
type Option func(*tree)

// WithTTL sets the number of dirty iterations a digest may run before it
// fails with ErrCodeDigestTTL. Default: DefaultTTL.
func WithTTL(ttl int) Option {
	return func(t *tree) {
		t.ttl = ttl
	}
}

// WithDocument sets the document templates are linked into.
// Default: an empty document.
func WithDocument(doc *dom.Document) Option {
	return func(t *tree) {
		t.doc = doc
	}
}

// WithLogger sets the logger used for loop diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *tree) {
		t.logger = logger
	}
}

// NewRoot creates a tree and returns its root scope.
func NewRoot(opts ...Option) *Scope {
	t := &tree{
		ids:        NewSequence(),
		postDigest: newQueue[func()](),
		ticks:      newQueue[Task](),
		ttl:        DefaultTTL,
		logger:     slog.Default(),
		exprs:      make(map[string]*Expression),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.doc == nil {
		t.doc = dom.NewDocument()
	}

	t.root = &Scope{
		id:    t.ids.Next(),
		t:     t,
		model: make(map[string]any),
	}
	return t.root
}

// ID returns the scope's identifier.
func (s *Scope) ID() ID { return s.id }

// Parent returns the parent scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the root of the tree.
func (s *Scope) Root() *Scope { return s.t.root }

// IsRoot reports whether s is the root of its tree.
func (s *Scope) IsRoot() bool { return s == s.t.root }

// Children returns a copy of the live children in creation order.
func (s *Scope) Children() []*Scope { return slices.Clone(s.children) }

// Destroyed reports whether the scope has been torn down.
func (s *Scope) Destroyed() bool { return s.destroyed }

// Document returns the document templates are linked into.
func (s *Scope) Document() *dom.Document { return s.t.doc }

// Model returns the scope's own model. The map is live: writes through it are
// visible to watchers on the next digest.
func (s *Scope) Model() map[string]any { return s.model }

// Get returns a top-level property of the scope's own model.
func (s *Scope) Get(key string) any { return s.model[key] }

// Set stores a top-level property on the scope's own model.
func (s *Scope) Set(key string, value any) { s.model[key] = value }

// Find returns the live scope with the given id in s's subtree.
func (s *Scope) Find(id ID) *Scope {
	if s.id == id && !s.destroyed {
		return s
	}
	for _, c := range s.children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Use installs an interceptor on the whole tree. Interceptors installed
// later wrap those installed earlier.
func (s *Scope) Use(i Interceptor) {
	s.t.interceptors = append(s.t.interceptors, i)
}

// Eval evaluates a property path against the scope. The first path segment
// resolves against the nearest scope, walking up through ancestors, whose
// model defines it.
func (s *Scope) Eval(expr string) (any, error) {
	e, err := s.t.parse(expr)
	if err != nil {
		return nil, err
	}
	return s.eval(e)
}

func (s *Scope) eval(e *Expression) (any, error) {
	if len(e.segments) == 0 {
		return s.model, nil
	}
	return e.Eval(s.modelFor(e.segments[0]))
}

// Assign stores value at a property path. Single-segment paths always write
// to the scope's own model; deeper paths write into the object the first
// segment resolves to.
func (s *Scope) Assign(expr string, value any) error {
	if s.destroyed {
		return NewDestroyedError(s.id, "assign on")
	}
	e, err := s.t.parse(expr)
	if err != nil {
		return err
	}
	target := s.model
	if len(e.segments) > 1 {
		target = s.modelFor(e.segments[0])
	}
	if err := e.Assign(target, value); err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			re.ScopeID = s.id
		}
		return err
	}
	return nil
}

func (s *Scope) modelFor(key string) map[string]any {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.model[key]; ok {
			return sc.model
		}
	}
	return s.model
}

// New creates a child scope.
func (s *Scope) New() *Scope {
	return s.t.newScope(s, len(s.t.interceptors)-1)
}

func (s *Scope) newChild() *Scope {
	child := &Scope{
		id:     s.t.ids.Next(),
		parent: s,
		t:      s.t,
		model:  make(map[string]any),
	}
	s.children = append(s.children, child)
	return child
}

// Destroy tears down the scope and its descendants. Each descendant is
// destroyed through the interceptor chain after its parent. Destroying an
// already destroyed scope does nothing.
func (s *Scope) Destroy() {
	if s.destroyed {
		return
	}
	s.t.destroy(s, len(s.t.interceptors)-1)
}

func (s *Scope) teardown() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	for _, c := range slices.Clone(s.children) {
		c.Destroy()
	}
	for _, w := range s.watchers {
		w.removed = true
	}
	s.watchers = nil
	s.children = nil
	if s.parent != nil {
		s.parent.children = slices.DeleteFunc(s.parent.children, func(c *Scope) bool {
			return c == s
		})
	}
}

// PostDigest queues fn to run once the current (or next) digest settles.
func (s *Scope) PostDigest(fn func()) {
	s.t.postDigest.Enqueue(fn)
}

func (t *tree) parse(expr string) (*Expression, error) {
	if e, ok := t.exprs[expr]; ok {
		return e, nil
	}
	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	t.exprs[expr] = e
	return e, nil
}
