package hint

import (
	"maps"
	"slices"
	"strings"

	"github.com/roach88/scopeprobe/internal/ir"
	"github.com/roach88/scopeprobe/internal/scope"
)

// pathGetter computes the live value of one observed path.
type pathGetter func() (any, error)

type watchEntry struct {
	id       scope.ID
	path     string
	get      pathGetter
	snapshot ir.Snapshot
}

// nodePaths keeps one scope's observed paths in registration order.
type nodePaths struct {
	order   []string
	entries map[string]*watchEntry
}

// watchIndex is the per-scope table of observed paths and their last
// snapshots.
type watchIndex struct {
	nodes map[scope.ID]*nodePaths
}

func newWatchIndex() *watchIndex {
	return &watchIndex{nodes: make(map[scope.ID]*nodePaths)}
}

func (x *watchIndex) has(id scope.ID, path string) bool {
	n, ok := x.nodes[id]
	if !ok {
		return false
	}
	_, ok = n.entries[path]
	return ok
}

// put stores an entry. It reports false, storing nothing, when the path is
// already present.
func (x *watchIndex) put(e *watchEntry) bool {
	n, ok := x.nodes[e.id]
	if !ok {
		n = &nodePaths{entries: make(map[string]*watchEntry)}
		x.nodes[e.id] = n
	}
	if _, dup := n.entries[e.path]; dup {
		return false
	}
	n.entries[e.path] = e
	n.order = append(n.order, e.path)
	return true
}

// removePrefix drops every path of id that starts with prefix. The match is
// on raw text, so prefix "user" also removes "username".
func (x *watchIndex) removePrefix(id scope.ID, prefix string) []string {
	n, ok := x.nodes[id]
	if !ok {
		return nil
	}
	var removed []string
	n.order = slices.DeleteFunc(n.order, func(p string) bool {
		if strings.HasPrefix(p, prefix) {
			delete(n.entries, p)
			removed = append(removed, p)
			return true
		}
		return false
	})
	if len(n.order) == 0 {
		delete(x.nodes, id)
	}
	return removed
}

func (x *watchIndex) removeNode(id scope.ID) {
	delete(x.nodes, id)
}

func (x *watchIndex) paths(id scope.ID) []string {
	n, ok := x.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.order)
}

// all returns every entry, scopes in id order and paths in registration
// order.
func (x *watchIndex) all() []*watchEntry {
	var out []*watchEntry
	for _, id := range slices.Sorted(maps.Keys(x.nodes)) {
		n := x.nodes[id]
		for _, p := range n.order {
			out = append(out, n.entries[p])
		}
	}
	return out
}

// current reports whether e is still the stored entry for its path.
func (x *watchIndex) current(e *watchEntry) bool {
	n, ok := x.nodes[e.id]
	return ok && n.entries[e.path] == e
}

func (x *watchIndex) clear() {
	clear(x.nodes)
}
