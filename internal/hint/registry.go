package hint

import (
	"maps"
	"slices"

	"github.com/roach88/scopeprobe/internal/scope"
)

// registry maps scope ids to live scopes.
//
// Ids are handed out in creation order, so iterating sorted ids is iterating
// in registration order.
type registry struct {
	scopes map[scope.ID]*scope.Scope
}

func newRegistry() *registry {
	return &registry{scopes: make(map[scope.ID]*scope.Scope)}
}

// register inserts s, overwriting any previous entry with the same id.
func (r *registry) register(s *scope.Scope) {
	r.scopes[s.ID()] = s
}

func (r *registry) lookup(id scope.ID) (*scope.Scope, bool) {
	s, ok := r.scopes[id]
	return s, ok
}

func (r *registry) remove(id scope.ID) {
	delete(r.scopes, id)
}

func (r *registry) ids() []scope.ID {
	return slices.Sorted(maps.Keys(r.scopes))
}

func (r *registry) len() int {
	return len(r.scopes)
}

func (r *registry) clear() {
	clear(r.scopes)
}
