package scope

import (
	"context"
)

// Defer schedules task on the next tick of the tree's loop.
// Safe from any goroutine. Returns false once the loop has been stopped.
func (s *Scope) Defer(task Task) bool {
	return s.t.ticks.Enqueue(task)
}

// Pending returns the number of queued tick tasks.
func (s *Scope) Pending() int {
	return s.t.ticks.Len()
}

// Flush runs queued tick tasks on the calling goroutine until the queue is
// empty, including tasks queued while flushing. It returns the number of
// tasks run. Task errors are logged and do not stop the flush.
func (s *Scope) Flush() int {
	n := 0
	for {
		task, ok := s.t.ticks.TryDequeue()
		if !ok {
			return n
		}
		s.t.runTask(task)
		n++
	}
}

// Run processes tick tasks until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine, the one that owns the
// tree. Task errors are logged and processing continues.
func (s *Scope) Run(ctx context.Context) error {
	t := s.t
	t.logger.Info("scope loop starting", "root", t.root.id)

	for {
		if task, ok := t.ticks.TryDequeue(); ok {
			t.runTask(task)
			continue
		}

		select {
		case <-ctx.Done():
			t.logger.Info("scope loop stopping: context cancelled")
			t.ticks.Close()
			return ctx.Err()

		case <-t.ticks.Wait():
			// The signal channel is closed once the queue is closed, so this
			// case fires repeatedly until the remaining tasks are drained.
			if t.ticks.Closed() && t.ticks.Len() == 0 {
				t.logger.Info("scope loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the tick queue. Run returns after draining queued tasks.
func (s *Scope) Stop() {
	s.t.ticks.Close()
}

func (t *tree) runTask(task Task) {
	if err := task(); err != nil {
		t.logger.Error("deferred task failed", "error", err)
	}
}
