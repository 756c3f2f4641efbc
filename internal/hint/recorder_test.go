package hint

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(n float64) Duration {
	return Duration(n * float64(time.Millisecond))
}

func assertBalanced(t *testing.T, d ScopeDigest) {
	t.Helper()
	sum := d.PreWatchTime + d.PostDigestQueueTime
	for _, ev := range d.Events {
		sum += ev.DigestTime
	}
	assert.Equal(t, d.Time, sum, "pre-watch + watch digest times + post-digest should equal total")
}

func TestRecorder_WatchesChargeUntilNextWatch(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	c := r.begin(1)
	m.Add(2 * time.Millisecond)
	r.watchStarted(1, "a")
	m.Add(5 * time.Millisecond)
	r.watchStarted(2, "b")
	m.Add(3 * time.Millisecond)
	d := r.end(c)

	assert.Equal(t, ms(10), d.Time)
	assert.Equal(t, ms(2), d.PreWatchTime)
	assert.Equal(t, ms(0), d.PostDigestQueueTime)
	require.Len(t, d.Events, 2)
	assert.Equal(t, WatchEvent{EventType: TypeScopeWatch, ID: 1, Watch: "a", DigestTime: ms(5)}, d.Events[0])
	assert.Equal(t, WatchEvent{EventType: TypeScopeWatch, ID: 2, Watch: "b", DigestTime: ms(3)}, d.Events[1])
	assertBalanced(t, d)
	assert.Nil(t, r.current())
}

func TestRecorder_PostDigestQueue(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	c := r.begin(1)
	r.watchStarted(1, "a")
	m.Add(4 * time.Millisecond)
	r.shifted()
	m.Add(6 * time.Millisecond)
	r.shifted()
	d := r.end(c)

	require.Len(t, d.Events, 1)
	assert.Equal(t, ms(4), d.Events[0].DigestTime, "deferred work is not charged to the last watch")
	assert.Equal(t, ms(6), d.PostDigestQueueTime)
	assert.Equal(t, ms(0), d.PreWatchTime)
	assertBalanced(t, d)
}

func TestRecorder_NoWatches(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	c := r.begin(3)
	m.Add(7 * time.Millisecond)
	d := r.end(c)

	assert.Equal(t, ScopeDigest{ID: 3, Time: ms(7), Events: []WatchEvent{}, PreWatchTime: ms(7)}, d)
}

func TestRecorder_PostDigestWithoutWatches(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	c := r.begin(1)
	m.Add(1 * time.Millisecond)
	r.shifted()
	m.Add(2 * time.Millisecond)
	d := r.end(c)

	assert.Equal(t, ms(1), d.PreWatchTime)
	assert.Equal(t, ms(2), d.PostDigestQueueTime)
	assertBalanced(t, d)
}

func TestRecorder_WatchAfterShiftResetsPostPhase(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	c := r.begin(1)
	r.watchStarted(1, "a")
	m.Add(1 * time.Millisecond)
	r.shifted()
	m.Add(1 * time.Millisecond)
	r.watchStarted(1, "b")
	m.Add(1 * time.Millisecond)
	d := r.end(c)

	require.Len(t, d.Events, 2)
	assert.Equal(t, ms(2), d.Events[0].DigestTime)
	assert.Equal(t, ms(1), d.Events[1].DigestTime)
	assert.Equal(t, ms(0), d.PostDigestQueueTime)
	assertBalanced(t, d)
}

func TestRecorder_NestedCycles(t *testing.T) {
	m := clock.NewMock()
	r := newRecorder(m)

	outer := r.begin(1)
	r.watchStarted(1, "outer")
	m.Add(1 * time.Millisecond)

	inner := r.begin(2)
	r.watchStarted(2, "inner")
	m.Add(2 * time.Millisecond)
	innerDigest := r.end(inner)

	m.Add(1 * time.Millisecond)
	outerDigest := r.end(outer)

	require.Len(t, innerDigest.Events, 1)
	assert.Equal(t, "inner", innerDigest.Events[0].Watch)
	assert.Equal(t, ms(2), innerDigest.Time)
	assertBalanced(t, innerDigest)

	require.Len(t, outerDigest.Events, 1)
	assert.Equal(t, "outer", outerDigest.Events[0].Watch)
	assert.Equal(t, ms(4), outerDigest.Time)
	assertBalanced(t, outerDigest)
}

func TestRecorder_OutsideCycle(t *testing.T) {
	r := newRecorder(clock.NewMock())
	assert.Nil(t, r.watchStarted(1, "a"))
	r.shifted()

	c := r.begin(1)
	r.abort(c)
	assert.Nil(t, r.current())
}
