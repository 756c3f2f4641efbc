package scope

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{"code only", &RuntimeError{Code: ErrCodeParse, Message: "bad"}, "PARSE_ERROR: bad"},
		{"scope", NewDestroyedError(3, "digest"), "SCOPE_DESTROYED: cannot digest a destroyed scope (scope=3)"},
		{"expr", NewAssignError("a.b", "no parent"), `ASSIGN_ERROR: no parent (expr="a.b")`},
		{"both", &RuntimeError{Code: ErrCodeParse, Message: "x", ScopeID: 2, Expr: "y"}, `PARSE_ERROR: x (scope=2, expr="y")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRuntimeError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("digest: %w", NewDigestTTLError(1, 10, 10, []string{"a"}))

	assert.True(t, IsDigestTTLError(wrapped))
	assert.False(t, IsParseError(wrapped))
	assert.True(t, IsParseError(NewParseError("a..b", "empty segment")))
	assert.True(t, IsAssignError(NewAssignError("a", "x")))
	assert.True(t, IsDestroyedError(NewDestroyedError(1, "watch")))
	assert.False(t, IsDestroyedError(fmt.Errorf("plain")))
}

func TestTTLEnforcer(t *testing.T) {
	q := newTTLEnforcer(3)

	for i := 0; i < 3; i++ {
		assert.NoError(t, q.Check(1, nil))
	}
	err := q.Check(1, []string{"count"})
	assert.True(t, IsDigestTTLError(err))
	assert.Equal(t, 4, q.Current())

	var re *RuntimeError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, "3", re.Details["ttl"])
	assert.Contains(t, re.Details["last_dirty"], "count")
}

func TestTTLEnforcer_DefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, DefaultTTL, newTTLEnforcer(0).ttl)
}
