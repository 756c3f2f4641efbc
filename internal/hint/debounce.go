package hint

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultDebounce is the trailing window of the change notifier.
const DefaultDebounce = 10 * time.Millisecond

// Debouncer coalesces triggers into one call of fn, made once wait has
// elapsed with no further trigger.
//
// Each Trigger re-arms the timer. Timers are tagged with a generation so a
// timer that fires after being superseded does nothing.
//
// Thread-safety: all methods are safe for concurrent use. fn runs on the
// clock's timer goroutine.
type Debouncer struct {
	clock clock.Clock
	wait  time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *clock.Timer
	gen     uint64
	pending bool
	wake    time.Time
	stopped bool

	fires atomic.Int64
}

// NewDebouncer creates a debouncer calling fn after wait of quiet.
func NewDebouncer(clk clock.Clock, wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{clock: clk, wait: wait, fn: fn}
}

// Trigger (re)starts the window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = true
	d.wake = d.clock.Now().Add(d.wait)
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn()
	d.fires.Add(1)
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// WakeAt returns when the scheduled call is due. Only meaningful while
// Pending.
func (d *Debouncer) WakeAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wake
}

// Fires returns how many times fn has completed.
func (d *Debouncer) Fires() int64 {
	return d.fires.Load()
}
