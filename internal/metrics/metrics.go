// Package metrics exposes an instrumentation feed as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/scopeprobe/internal/hint"
)

const namespace = "scopeprobe"

// Model change kinds.
const (
	KindInitial    = "initial"
	KindTransition = "transition"
)

// Collector is a hint.Sink that updates Prometheus metrics from the feed.
//
// Thread-safety: Prometheus metrics are safe for concurrent use.
type Collector struct {
	reg prometheus.Registerer

	scopes          prometheus.Gauge
	scopesCreated   prometheus.Counter
	scopesDestroyed prometheus.Counter
	links           prometheus.Counter

	digestSeconds    prometheus.Histogram
	digestWatches    prometheus.Histogram
	postQueueSeconds prometheus.Histogram
	watchSeconds     prometheus.Histogram
	reactionSeconds  prometheus.Histogram

	modelChanges *prometheus.CounterVec
}

var _ hint.Sink = (*Collector)(nil)

// New registers the collector's metrics with reg.
// Registering twice on the same registry panics, as with promauto.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		reg: reg,

		scopes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "scopes",
			Help:      "Live instrumented scopes",
		}),
		scopesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "scopes_created_total",
			Help:      "Scopes created since attach",
		}),
		scopesDestroyed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "scopes_destroyed_total",
			Help:      "Scopes destroyed since attach",
		}),
		links: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "links_total",
			Help:      "Link descriptors emitted",
		}),

		digestSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "duration_seconds",
			Help:      "Total digest cycle time",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		digestWatches: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "watch_events",
			Help:      "Watch evaluations recorded per digest",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		postQueueSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "post_queue_seconds",
			Help:      "Time spent draining the post-digest queue",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		watchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "expression_seconds",
			Help:      "Watch expression evaluation time",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}),
		reactionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "reaction_seconds",
			Help:      "Watch listener time",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}),

		modelChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "changes_total",
			Help:      "Observed model changes by kind (initial, transition)",
		}, []string{"kind"}),
	}
}

// Emit implements hint.Sink.
func (c *Collector) Emit(ev hint.Event) {
	switch e := ev.(type) {
	case hint.ScopeNew:
		c.scopes.Inc()
		c.scopesCreated.Inc()
	case hint.ScopeDestroy:
		c.scopes.Dec()
		c.scopesDestroyed.Inc()
	case hint.ScopeLink:
		c.links.Inc()
	case hint.ScopeDigest:
		c.digestSeconds.Observe(e.Time.Std().Seconds())
		c.digestWatches.Observe(float64(len(e.Events)))
		c.postQueueSeconds.Observe(e.PostDigestQueueTime.Std().Seconds())
		for _, w := range e.Events {
			c.watchSeconds.Observe(w.WatchExpressionTime.Std().Seconds())
			if w.ReactionFunctionTime > 0 {
				c.reactionSeconds.Observe(w.ReactionFunctionTime.Std().Seconds())
			}
		}
	case hint.ModelChange:
		kind := KindTransition
		if e.Initial() {
			kind = KindInitial
		}
		c.modelChanges.WithLabelValues(kind).Inc()
	}
}

// FeedStats is implemented by feed.Hub.
type FeedStats interface {
	Published() int64
	Dropped() int64
}

// TrackFeed exports the delivery counters of a feed hub.
func (c *Collector) TrackFeed(s FeedStats) {
	f := promauto.With(c.reg)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "published_total",
		Help:      "Envelopes published to feed subscribers",
	}, func() float64 { return float64(s.Published()) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "dropped_total",
		Help:      "Envelope deliveries skipped for slow subscribers",
	}, func() float64 { return float64(s.Dropped()) })
}
