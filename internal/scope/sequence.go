package scope

import "sync/atomic"

// Sequence hands out scope identifiers.
//
// Identifiers are unique within a tree and strictly increasing in creation
// order; the root always receives 1. They are never reused, so a destroyed
// scope's id cannot be confused with a later child.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	n atomic.Int64
}

// NewSequence creates a sequence whose first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence whose first Next returns start+1.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next returns the next identifier.
func (s *Sequence) Next() ID {
	return ID(s.n.Add(1))
}

// Current returns the last identifier handed out, or the start value.
func (s *Sequence) Current() ID {
	return ID(s.n.Load())
}
