package scope

import (
	"github.com/roach88/scopeprobe/internal/dom"
)

// ScopeClass is the class the host adds to every element bound to a scope.
const ScopeClass = "ng-scope"

// LinkFunc binds a compiled template to a scope and returns the element that
// now carries the scope.
type LinkFunc func(s *Scope) (*dom.Element, error)

// Compile parses a template. Each call of the returned LinkFunc appends a
// fresh copy of the markup to the scope's document, marks its first element
// with ScopeClass and binds it to the scope.
func Compile(markup string) (LinkFunc, error) {
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, NewParseError(markup, err.Error())
	}
	if len(nodes) == 0 {
		return nil, NewParseError(markup, "template has no element")
	}

	return func(s *Scope) (*dom.Element, error) {
		if s.destroyed {
			return nil, NewDestroyedError(s.id, "link")
		}
		return s.t.link(s, markup, len(s.t.interceptors)-1)
	}, nil
}

func (s *Scope) attach(markup string) (*dom.Element, error) {
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, NewParseError(markup, err.Error())
	}

	var first *dom.Element
	for _, n := range nodes {
		el := s.t.doc.Append(n)
		if first == nil {
			first = el
		}
	}
	if first == nil {
		return nil, NewParseError(markup, "template has no element")
	}
	first.AddClass(ScopeClass)
	s.t.doc.Bind(first, int64(s.id))
	return first, nil
}
