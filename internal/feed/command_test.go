package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
	"github.com/roach88/scopeprobe/internal/testutil"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr string
	}{
		{"observe", `{"op":"observe","id":2,"path":"a.b"}`, Command{Op: OpObserve, ID: 2, Path: "a.b"}, ""},
		{"inspect", `{"op":"inspect","id":4}`, Command{Op: OpInspect, ID: 4}, ""},
		{"assign", `{"op":"assign","id":1,"path":"x","value":[1,2]}`, Command{Op: OpAssign, ID: 1, Path: "x", Value: json.RawMessage(`[1,2]`)}, ""},
		{"assign without value", `{"op":"assign","id":1,"path":"x"}`, Command{}, "assign needs a value"},
		{"unknown op", `{"op":"eval","id":1}`, Command{}, `unknown op "eval"`},
		{"not json", `observe 1 a`, Command{}, "decode command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply(t *testing.T) {
	root := scope.NewRoot()
	root.Set("cart", map[string]any{"total": 3})
	sink := testutil.NewCapture()
	tree := hint.Attach(root, sink, hint.WithClock(testutil.NewMockClock()))

	require.NoError(t, Apply(tree, Command{Op: OpObserve, ID: 1, Path: "cart.total"}))
	assert.Equal(t, []string{"cart", "cart.total"}, tree.Paths(1))

	require.NoError(t, Apply(tree, Command{Op: OpAssign, ID: 1, Path: "cart.total", Value: json.RawMessage(`5`)}))
	assert.Equal(t, map[string]any{"total": float64(5)}, root.Get("cart"))

	require.NoError(t, Apply(tree, Command{Op: OpUnobserve, ID: 1, Path: "cart.total"}))
	assert.Equal(t, []string{"cart"}, tree.Paths(1))

	require.NoError(t, Apply(tree, Command{Op: OpInspect, ID: 1}))
	assert.Same(t, root, hint.Inspected())

	err := Apply(tree, Command{Op: OpAssign, ID: 1, Path: "x", Value: json.RawMessage(`{`)})
	assert.ErrorContains(t, err, "decode value")

	err = Apply(tree, Command{Op: OpObserve, ID: 1, Path: "a[x]"})
	assert.True(t, scope.IsParseError(err))
}
