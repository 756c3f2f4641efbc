package scope

import "github.com/roach88/scopeprobe/internal/dom"

// Interceptor wraps the lifecycle operations of a tree.
//
// Each hook receives the scope it applies to and a next function that
// performs the operation (including any interceptors installed earlier).
// A hook may run code before and after next, replace its arguments, or skip
// it entirely.
type Interceptor interface {
	// Watch wraps watcher registration.
	Watch(s *Scope, w Watch, next func(Watch) func()) func()

	// Digest wraps a digest started on s.
	Digest(s *Scope, next func() error) error

	// New wraps child creation under parent.
	New(parent *Scope, next func() *Scope) *Scope

	// Destroy wraps teardown of s.
	Destroy(s *Scope, next func())

	// Apply wraps an apply started on s.
	Apply(s *Scope, next func() error) error

	// Shift wraps removal of one task from the post-digest queue during a
	// digest of s.
	Shift(s *Scope, next func() (func(), bool)) (func(), bool)

	// Link wraps binding a compiled template to s.
	Link(s *Scope, next func() (*dom.Element, error)) (*dom.Element, error)
}

// Passthrough implements every Interceptor hook by calling next.
// Embed it to override only some hooks.
type Passthrough struct{}

func (Passthrough) Watch(_ *Scope, w Watch, next func(Watch) func()) func() { return next(w) }

func (Passthrough) Digest(_ *Scope, next func() error) error { return next() }

func (Passthrough) New(_ *Scope, next func() *Scope) *Scope { return next() }

func (Passthrough) Destroy(_ *Scope, next func()) { next() }

func (Passthrough) Apply(_ *Scope, next func() error) error { return next() }

func (Passthrough) Shift(_ *Scope, next func() (func(), bool)) (func(), bool) { return next() }

func (Passthrough) Link(_ *Scope, next func() (*dom.Element, error)) (*dom.Element, error) {
	return next()
}

// The chain helpers below dispatch from interceptor i down to 0, then to the
// undecorated operation.

func (t *tree) watch(s *Scope, w Watch, i int) func() {
	if i < 0 {
		return s.addWatcher(w)
	}
	return t.interceptors[i].Watch(s, w, func(w Watch) func() {
		return t.watch(s, w, i-1)
	})
}

func (t *tree) digest(s *Scope, i int) error {
	if i < 0 {
		return s.digest()
	}
	return t.interceptors[i].Digest(s, func() error {
		return t.digest(s, i-1)
	})
}

func (t *tree) newScope(parent *Scope, i int) *Scope {
	if i < 0 {
		return parent.newChild()
	}
	return t.interceptors[i].New(parent, func() *Scope {
		return t.newScope(parent, i-1)
	})
}

func (t *tree) destroy(s *Scope, i int) {
	if i < 0 {
		s.teardown()
		return
	}
	t.interceptors[i].Destroy(s, func() {
		t.destroy(s, i-1)
	})
}

func (t *tree) apply(s *Scope, fn func(*Scope) error, i int) error {
	if i < 0 {
		return s.apply(fn)
	}
	return t.interceptors[i].Apply(s, func() error {
		return t.apply(s, fn, i-1)
	})
}

func (t *tree) shift(s *Scope, i int) (func(), bool) {
	if i < 0 {
		return t.postDigest.TryDequeue()
	}
	return t.interceptors[i].Shift(s, func() (func(), bool) {
		return t.shift(s, i-1)
	})
}

func (t *tree) link(s *Scope, markup string, i int) (*dom.Element, error) {
	if i < 0 {
		return s.attach(markup)
	}
	return t.interceptors[i].Link(s, func() (*dom.Element, error) {
		return t.link(s, markup, i-1)
	})
}
