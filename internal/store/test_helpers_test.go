package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/ir"
	"github.com/roach88/scopeprobe/internal/scope"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession registers id on s.
func createTestSession(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateSession(context.Background(), id, ""); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
}

// sampleFeed is a short feed touching every event type.
func sampleFeed() []hint.Event {
	root := scope.ID(1)
	old := ir.Snapshot(`1`)
	return []hint.Event{
		hint.ScopeNew{Parent: nil, Child: 1},
		hint.ScopeNew{Parent: &root, Child: 2},
		hint.ScopeLink{ID: 2, Descriptor: `ng-controller="Cart"`},
		hint.ModelChange{ID: 2, Path: "count", Value: `1`},
		hint.ScopeDigest{
			ID:   1,
			Time: hint.Duration(2500000),
			Events: []hint.WatchEvent{{
				EventType:           hint.TypeScopeWatch,
				ID:                  2,
				Watch:               "count",
				DigestTime:          hint.Duration(2500000),
				WatchExpressionTime: hint.Duration(2000000),
			}},
		},
		hint.ModelChange{ID: 2, Path: "count", OldValue: &old, Value: `2`},
		hint.ScopeDestroy{ID: 2},
	}
}
