package scope

import (
	"reflect"
	"slices"
)

// Digest evaluates every watcher in the subtree rooted at s until no watched
// value changes, then drains the post-digest queue.
//
// Getter and listener errors abort the digest and are returned unchanged.
// A subtree that keeps changing for more than the tree's TTL fails with
// ErrCodeDigestTTL.
func (s *Scope) Digest() error {
	if s.destroyed {
		return NewDestroyedError(s.id, "digest")
	}
	return s.t.digest(s, len(s.t.interceptors)-1)
}

// Apply runs fn against s and then digests the whole tree. The digest runs
// even when fn fails; that failure comes back as an *ApplyError carrying any
// digest error alongside it.
func (s *Scope) Apply(fn func(*Scope) error) error {
	if s.destroyed {
		return NewDestroyedError(s.id, "apply")
	}
	return s.t.apply(s, fn, len(s.t.interceptors)-1)
}

func (s *Scope) apply(fn func(*Scope) error) error {
	var fnErr error
	if fn != nil {
		fnErr = fn(s)
	}
	digestErr := s.t.root.Digest()
	if fnErr != nil {
		return &ApplyError{Err: fnErr, Digest: digestErr}
	}
	return digestErr
}

func (s *Scope) digest() error {
	ttl := newTTLEnforcer(s.t.ttl)
	for {
		dirty, err := s.digestOnce()
		if err != nil {
			return err
		}
		if len(dirty) == 0 {
			break
		}
		if err := ttl.Check(s.id, dirty); err != nil {
			s.t.logger.Error("digest did not stabilize",
				"scope", s.id,
				"iterations", ttl.Current(),
				"last_dirty", dirty,
			)
			return err
		}
	}

	last := len(s.t.interceptors) - 1
	for {
		task, ok := s.t.shift(s, last)
		if !ok {
			return nil
		}
		task()
	}
}

// digestOnce runs one pass over the subtree in depth-first pre-order and
// returns the labels of watchers whose value changed.
func (s *Scope) digestOnce() ([]string, error) {
	var dirty []string

	var walk func(sc *Scope) error
	walk = func(sc *Scope) error {
		for _, w := range slices.Clone(sc.watchers) {
			if w.removed || sc.destroyed {
				continue
			}
			value, err := w.get(sc)
			if err != nil {
				return err
			}
			if w.initialized && reflect.DeepEqual(value, w.last) {
				continue
			}

			old := w.last
			if !w.initialized {
				old = value
			}
			w.last, w.initialized = value, true
			dirty = append(dirty, w.label)

			if w.listener != nil {
				if err := w.listener(value, old, sc); err != nil {
					return err
				}
			}
		}
		for _, c := range slices.Clone(sc.children) {
			if c.destroyed {
				continue
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	return dirty, walk(s)
}
