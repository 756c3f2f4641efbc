package testutil

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scopeprobe/internal/scope"
)

// Epoch is the instant mock clocks start at.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewMockClock returns a mock clock set to Epoch.
//
// Time only moves when the test calls Add. Note that benbjohnson/clock runs
// AfterFunc callbacks on their own goroutine, so effects of a timer firing
// must be awaited (see WaitPending).
func NewMockClock() *clock.Mock {
	m := clock.NewMock()
	m.Set(Epoch)
	return m
}

// Costly returns a getter that advances m by cost and then evaluates expr.
// It simulates a watch expression that takes cost to evaluate.
func Costly(m *clock.Mock, cost time.Duration, expr string) scope.Getter {
	return func(s *scope.Scope) (any, error) {
		m.Add(cost)
		return s.Eval(expr)
	}
}

// CostlyListener returns a listener that advances m by cost.
func CostlyListener(m *clock.Mock, cost time.Duration) scope.Listener {
	return func(_, _ any, _ *scope.Scope) error {
		m.Add(cost)
		return nil
	}
}

// WaitPending blocks until root has at least n queued tick tasks, failing
// the test after a second.
func WaitPending(t testing.TB, root *scope.Scope, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for root.Pending() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending tasks (have %d)", n, root.Pending())
		}
		time.Sleep(time.Millisecond)
	}
}
