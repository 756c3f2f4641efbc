package hint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/scopeprobe/internal/scope"
)

func entry(id scope.ID, path string) *watchEntry {
	return &watchEntry{id: id, path: path, get: func() (any, error) { return nil, nil }}
}

func TestWatchIndex_PutIsIdempotent(t *testing.T) {
	x := newWatchIndex()
	first := entry(1, "a")

	assert.True(t, x.put(first))
	assert.False(t, x.put(entry(1, "a")))
	assert.True(t, x.has(1, "a"))
	assert.False(t, x.has(2, "a"))
	assert.True(t, x.current(first))
}

func TestWatchIndex_RemovePrefixIsRawText(t *testing.T) {
	x := newWatchIndex()
	for _, p := range []string{"user", "user.name", "username", "a"} {
		x.put(entry(1, p))
	}

	removed := x.removePrefix(1, "user")
	assert.Equal(t, []string{"user", "user.name", "username"}, removed)
	assert.Equal(t, []string{"a"}, x.paths(1))

	assert.Nil(t, x.removePrefix(9, "a"))
}

func TestWatchIndex_RemoveLastPathDropsNode(t *testing.T) {
	x := newWatchIndex()
	x.put(entry(1, "a"))
	x.removePrefix(1, "")

	assert.Empty(t, x.nodes)
}

func TestWatchIndex_AllOrder(t *testing.T) {
	x := newWatchIndex()
	x.put(entry(2, "z"))
	x.put(entry(1, "b"))
	x.put(entry(2, "a"))
	x.put(entry(1, "a"))

	var got []string
	for _, e := range x.all() {
		got = append(got, e.path)
	}
	assert.Equal(t, []string{"b", "a", "z", "a"}, got)
}

func TestWatchIndex_RemoveNodeAndClear(t *testing.T) {
	x := newWatchIndex()
	e := entry(1, "a")
	x.put(e)
	x.put(entry(2, "b"))

	x.removeNode(1)
	assert.False(t, x.current(e))
	assert.Nil(t, x.paths(1))

	x.clear()
	assert.Empty(t, x.all())
}

func TestRegistry(t *testing.T) {
	root := scope.NewRoot()
	child := root.New()

	r := newRegistry()
	r.register(child)
	r.register(root)

	assert.Equal(t, []scope.ID{1, 2}, r.ids())
	got, ok := r.lookup(2)
	assert.True(t, ok)
	assert.Same(t, child, got)

	r.remove(2)
	r.remove(2)
	_, ok = r.lookup(2)
	assert.False(t, ok)
	assert.Equal(t, 1, r.len())

	r.clear()
	assert.Equal(t, 0, r.len())
}
