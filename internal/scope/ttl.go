package scope

// DefaultTTL is the default number of dirty iterations a digest may run.
const DefaultTTL = 10

// ttlEnforcer counts dirty iterations of a single digest and stops the loop
// once the limit is reached.
//
// Each digest owns its own enforcer. Without it a pair of watchers that keep
// mutating each other's inputs would spin forever.
type ttlEnforcer struct {
	ttl     int
	current int
}

func newTTLEnforcer(ttl int) *ttlEnforcer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ttlEnforcer{ttl: ttl}
}

// Check records one dirty iteration and fails once more than ttl have run.
func (q *ttlEnforcer) Check(id ID, lastDirty []string) error {
	q.current++
	if q.current > q.ttl {
		return NewDigestTTLError(id, q.current, q.ttl, lastDirty)
	}
	return nil
}

// Current returns the number of dirty iterations recorded.
func (q *ttlEnforcer) Current() int {
	return q.current
}
