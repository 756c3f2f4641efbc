package scope

import (
	"reflect"
	"runtime"
	"slices"
	"strings"
)

// Getter computes a watched value.
type Getter func(s *Scope) (any, error)

// Listener reacts to a change of a watched value. On the first evaluation
// oldValue equals newValue.
type Listener func(newValue, oldValue any, s *Scope) error

// Watch describes a watcher registration.
//
// Either Expr or Get must be set. When Get is set, Expr is only a label.
type Watch struct {
	// Expr is a property path, optionally prefixed with "::" for a one-time
	// binding.
	Expr string

	// Get computes the value when the watch is not a plain path.
	Get Getter

	// Name labels a Get-based watch.
	Name string

	// Expressions lists the source expressions of an interpolating Get.
	// A Get-based watch is one-time when any of them carries "::".
	Expressions []string

	// Listener is called with the new and previous value after a change.
	Listener Listener
}

// OneTime reports whether the registration is a one-time binding.
func (w Watch) OneTime() bool {
	if strings.HasPrefix(strings.TrimSpace(w.Expr), OneTimePrefix) {
		return true
	}
	if w.Get == nil {
		return false
	}
	for _, e := range w.Expressions {
		if strings.HasPrefix(strings.TrimSpace(e), OneTimePrefix) {
			return true
		}
	}
	return false
}

// Label names the watch: the expression text, else Name, else the Go name of
// the getter function.
func (w Watch) Label() string {
	if w.Expr != "" {
		return w.Expr
	}
	if w.Name != "" {
		return w.Name
	}
	if w.Get != nil {
		if fn := runtime.FuncForPC(reflect.ValueOf(w.Get).Pointer()); fn != nil {
			return fn.Name()
		}
	}
	return "function"
}

type watcher struct {
	get         Getter
	listener    Listener
	label       string
	last        any
	initialized bool
	removed     bool
}

// Watch registers a watcher and returns its deregistration function.
// Watching on a destroyed scope returns a no-op deregistration.
func (s *Scope) Watch(w Watch) func() {
	if s.destroyed {
		return func() {}
	}
	return s.t.watch(s, w, len(s.t.interceptors)-1)
}

func (s *Scope) addWatcher(w Watch) func() {
	if w.OneTime() {
		return s.watchOnce(w)
	}

	get := w.Get
	if get == nil {
		get = s.t.pathGetter(w.Expr)
	}
	wt := &watcher{
		get:      get,
		listener: w.Listener,
		label:    w.Label(),
	}
	s.watchers = append(s.watchers, wt)

	return func() {
		if wt.removed {
			return
		}
		wt.removed = true
		s.watchers = slices.DeleteFunc(s.watchers, func(x *watcher) bool {
			return x == wt
		})
	}
}

// watchOnce replaces a one-time binding with a watcher that removes itself
// after the digest in which it first sees a non-nil value. The replacement
// is registered through the interceptor chain like any other watch.
func (s *Scope) watchOnce(w Watch) func() {
	inner := w.Get
	if inner == nil {
		inner = s.t.pathGetter(w.Expr)
	}

	var last any
	var deregister func()
	replacement := Watch{
		Name: strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(w.Label()), OneTimePrefix)),
		Get: func(sc *Scope) (any, error) {
			v, err := inner(sc)
			last = v
			return v, err
		},
		Listener: func(newValue, oldValue any, sc *Scope) error {
			var err error
			if w.Listener != nil {
				err = w.Listener(newValue, oldValue, sc)
			}
			if newValue != nil {
				sc.PostDigest(func() {
					if last != nil && deregister != nil {
						deregister()
					}
				})
			}
			return err
		},
	}

	deregister = s.t.watch(s, replacement, len(s.t.interceptors)-1)
	return func() {
		if deregister != nil {
			deregister()
		}
	}
}

func (t *tree) pathGetter(expr string) Getter {
	e, err := t.parse(expr)
	if err != nil {
		return func(*Scope) (any, error) {
			return nil, err
		}
	}
	return func(sc *Scope) (any, error) {
		return sc.eval(e)
	}
}
