package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		src      string
		segments []string
		oneTime  bool
	}{
		{"a", []string{"a"}, false},
		{"a.b.c", []string{"a", "b", "c"}, false},
		{" cart.items[0].name ", []string{"cart", "items", "0", "name"}, false},
		{"grid[1][2]", []string{"grid", "1", "2"}, false},
		{"::title", []string{"title"}, true},
		{":: user.name", []string{"user", "name"}, true},
		{"$index", []string{"$index"}, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.segments, e.Segments())
			assert.Equal(t, tt.oneTime, e.OneTime())
			assert.Equal(t, tt.src, e.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{"a..b", ".a", "a.", "a[x]", "a[1", "[0]", "a b", "a-b", "a[0]b", "a[0]."} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %v", err)
		})
	}
}

type profile struct {
	Name  string `json:"name"`
	Age   int
	Tags  []string
	inner int
}

func TestExpression_Eval(t *testing.T) {
	root := map[string]any{
		"user":  &profile{Name: "ada", Age: 36, Tags: []string{"x", "y"}},
		"items": []any{map[string]any{"id": 7}},
		"count": 3,
		"typed": map[string]int{"n": 1},
	}

	tests := []struct {
		expr string
		want any
	}{
		{"count", 3},
		{"user.name", "ada"},
		{"user.Name", "ada"},
		{"user.Age", 36},
		{"user.Tags[1]", "y"},
		{"items[0].id", 7},
		{"typed.n", 1},
		{"missing", nil},
		{"missing.deeper", nil},
		{"items[5]", nil},
		{"user.inner", nil},
		{"count.x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := Parse(tt.expr)
			require.NoError(t, err)
			got, err := e.Eval(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpression_Assign(t *testing.T) {
	user := &profile{Name: "ada"}
	root := map[string]any{
		"user":  user,
		"list":  []any{1, 2},
		"typed": map[string]float64{},
	}

	assign := func(expr string, v any) error {
		e, err := Parse(expr)
		require.NoError(t, err)
		return e.Assign(root, v)
	}

	require.NoError(t, assign("count", 1))
	assert.Equal(t, 1, root["count"])

	require.NoError(t, assign("a.b.c", "deep"))
	assert.Equal(t, map[string]any{"b": map[string]any{"c": "deep"}}, root["a"])

	require.NoError(t, assign("user.name", "grace"))
	assert.Equal(t, "grace", user.Name)

	require.NoError(t, assign("user.Age", int64(40)))
	assert.Equal(t, 40, user.Age)

	require.NoError(t, assign("list[1]", "two"))
	assert.Equal(t, []any{1, "two"}, root["list"])

	require.NoError(t, assign("typed.rate", 2))
	assert.Equal(t, 2.0, root["typed"].(map[string]float64)["rate"])

	require.NoError(t, assign("count", nil))
	v, ok := root["count"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestExpression_AssignErrors(t *testing.T) {
	root := map[string]any{
		"user":  &profile{},
		"value": profile{},
		"n":     1,
	}

	for _, expr := range []string{"", "user.Missing", "user.Age.x", "user.inner", "value.Name", "n.x", "user.Tags[0]"} {
		t.Run(expr, func(t *testing.T) {
			e, err := Parse(expr)
			require.NoError(t, err)
			err = e.Assign(root, 1)
			require.Error(t, err)
			assert.True(t, IsAssignError(err), "got %v", err)
		})
	}
}
