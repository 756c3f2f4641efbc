package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/ir"
	"github.com/roach88/scopeprobe/internal/scope"
	probetest "github.com/roach88/scopeprobe/internal/testutil"
)

func TestCollector_ScopesAndLinks(t *testing.T) {
	c := New(prometheus.NewRegistry())
	root := scope.ID(1)

	c.Emit(hint.ScopeNew{Child: 1})
	c.Emit(hint.ScopeNew{Parent: &root, Child: 2})
	c.Emit(hint.ScopeLink{ID: 2, Descriptor: "scope.id=2"})
	c.Emit(hint.ScopeDestroy{ID: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.scopes))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.scopesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scopesDestroyed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.links))
}

func TestCollector_ModelChangesByKind(t *testing.T) {
	c := New(prometheus.NewRegistry())
	old := ir.Snapshot(`1`)

	c.Emit(hint.ModelChange{ID: 1, Path: "a", Value: `1`})
	c.Emit(hint.ModelChange{ID: 1, Path: "b", Value: `1`})
	c.Emit(hint.ModelChange{ID: 1, Path: "a", OldValue: &old, Value: `2`})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.modelChanges.WithLabelValues(KindInitial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelChanges.WithLabelValues(KindTransition)))
}

func TestCollector_Digests(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Emit(hint.ScopeDigest{
		ID:   1,
		Time: hint.Duration(8 * time.Millisecond),
		Events: []hint.WatchEvent{
			{ID: 1, Watch: "a", DigestTime: hint.Duration(5 * time.Millisecond), WatchExpressionTime: hint.Duration(5 * time.Millisecond)},
			{ID: 1, Watch: "b", DigestTime: hint.Duration(3 * time.Millisecond), WatchExpressionTime: hint.Duration(time.Millisecond), ReactionFunctionTime: hint.Duration(2 * time.Millisecond)},
		},
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]uint64{}
	sums := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
				sums[mf.GetName()] = h.GetSampleSum()
			}
		}
	}

	assert.Equal(t, uint64(1), counts["scopeprobe_digest_duration_seconds"])
	assert.InDelta(t, 0.008, sums["scopeprobe_digest_duration_seconds"], 1e-9)
	assert.InDelta(t, 2.0, sums["scopeprobe_digest_watch_events"], 1e-9)
	assert.Equal(t, uint64(2), counts["scopeprobe_watch_expression_seconds"])
	assert.Equal(t, uint64(1), counts["scopeprobe_watch_reaction_seconds"])
	assert.Equal(t, uint64(1), counts["scopeprobe_digest_post_queue_seconds"])
}

func TestCollector_AttachedTree(t *testing.T) {
	c := New(prometheus.NewRegistry())
	root := scope.NewRoot()
	hint.Attach(root, c, hint.WithClock(probetest.NewMockClock()))

	child := root.New()
	root.Flush()
	require.NoError(t, root.Digest())
	child.Destroy()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.scopes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.links))
}

type fakeFeed struct{ published, dropped int64 }

func (f fakeFeed) Published() int64 { return f.published }
func (f fakeFeed) Dropped() int64   { return f.dropped }

func TestCollector_TrackFeed(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.TrackFeed(fakeFeed{published: 7, dropped: 2})

	n, err := testutil.GatherAndCount(reg, "scopeprobe_feed_published_total", "scopeprobe_feed_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if ctr := m.GetCounter(); ctr != nil {
				values[mf.GetName()] = ctr.GetValue()
			}
		}
	}
	assert.Equal(t, 7.0, values["scopeprobe_feed_published_total"])
	assert.Equal(t, 2.0, values["scopeprobe_feed_dropped_total"])
}
