package hint

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesWithinWindow(t *testing.T) {
	m := clock.NewMock()
	var calls atomic.Int32
	d := NewDebouncer(m, 10*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	assert.True(t, d.Pending())
	m.Add(5 * time.Millisecond)
	d.Trigger()
	m.Add(5 * time.Millisecond)
	d.Trigger()
	assert.Equal(t, m.Now().Add(10*time.Millisecond), d.WakeAt())

	m.Add(10 * time.Millisecond)
	require.Eventually(t, func() bool { return d.Fires() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())

	m.Add(50 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_FiresAgainAfterNewTrigger(t *testing.T) {
	m := clock.NewMock()
	var calls atomic.Int32
	d := NewDebouncer(m, 10*time.Millisecond, func() { calls.Add(1) })

	for i := 1; i <= 2; i++ {
		d.Trigger()
		m.Add(10 * time.Millisecond)
		require.Eventually(t, func() bool { return d.Fires() == int64(i) }, time.Second, time.Millisecond)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	m := clock.NewMock()
	var calls atomic.Int32
	d := NewDebouncer(m, 10*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	assert.False(t, d.Pending())

	m.Add(20 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int64(0), d.Fires())
}
