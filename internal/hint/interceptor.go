package hint

import (
	"errors"

	"github.com/roach88/scopeprobe/internal/dom"
	"github.com/roach88/scopeprobe/internal/scope"
)

// interceptor is the decoration installed on the host tree.
type interceptor struct {
	t *Tree

	// skipNext is set while a one-time registration is passed through, so
	// the host's replacement registration also passes through.
	skipNext bool
}

var _ scope.Interceptor = (*interceptor)(nil)

func (x *interceptor) Watch(_ *scope.Scope, w scope.Watch, next func(scope.Watch) func()) func() {
	if x.skipNext {
		x.skipNext = false
		return next(w)
	}
	if w.OneTime() {
		x.skipNext = true
		stop := next(w)
		x.skipNext = false
		return stop
	}
	return next(x.t.rec.wrap(w))
}

func (x *interceptor) Digest(s *scope.Scope, next func() error) error {
	c := x.t.rec.begin(s.ID())
	if err := next(); err != nil {
		x.t.rec.abort(c)
		return err
	}
	summary := x.t.rec.end(c)
	x.t.logger.Debug("digest recorded",
		"scope", summary.ID,
		"time", summary.Time,
		"events", len(summary.Events),
	)
	x.t.emit(summary)
	return nil
}

func (x *interceptor) New(parent *scope.Scope, next func() *scope.Scope) *scope.Scope {
	child := next()
	x.t.register(child)

	pid := parent.ID()
	x.t.emit(ScopeNew{Parent: &pid, Child: child.ID()})

	// The element is linked after creation returns, so look it up a tick later.
	id := child.ID()
	child.Defer(func() error {
		x.t.linkLater(id)
		return nil
	})
	return child
}

func (x *interceptor) Destroy(s *scope.Scope, next func()) {
	x.t.emit(ScopeDestroy{ID: s.ID()})
	x.t.deregister(s.ID())
	if s.IsRoot() {
		x.t.detach()
	}
	next()
}

// Apply triggers the re-check whenever the digest completed, including after
// a failing function.
func (x *interceptor) Apply(_ *scope.Scope, next func() error) error {
	err := next()
	var applyErr *scope.ApplyError
	if err == nil || (errors.As(err, &applyErr) && applyErr.Committed()) {
		x.t.notifier.Trigger()
	}
	return err
}

func (x *interceptor) Shift(_ *scope.Scope, next func() (func(), bool)) (func(), bool) {
	task, ok := next()
	if ok {
		x.t.rec.shifted()
	}
	return task, ok
}

func (x *interceptor) Link(s *scope.Scope, next func() (*dom.Element, error)) (*dom.Element, error) {
	el, err := next()
	if err != nil {
		return nil, err
	}
	x.t.emitLink(s.ID())
	return el, nil
}
