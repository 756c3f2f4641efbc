package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/scopeprobe/internal/hint"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Payload)
	}

	return buf.String()
}

// assertEventCount checks that the event type occurs exactly Count times,
// counting only events about Scope when it is set.
func assertEventCount(r *Result, assertion Assertion) error {
	count := 0
	for _, ev := range r.events {
		if ev.Type() != assertion.Event {
			continue
		}
		if assertion.Scope != 0 && hint.ScopeID(ev) != assertion.Scope {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Event
		if assertion.Scope != 0 {
			what = fmt.Sprintf("%s on scope %d", assertion.Event, assertion.Scope)
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertEventOrder checks that the event types occur in the given relative
// order. Intervening events are allowed and a type may be listed repeatedly.
func assertEventOrder(r *Result, assertion Assertion) error {
	next := 0
	for _, event := range r.Trace {
		if next < len(assertion.Events) && event.Type == assertion.Events[next] {
			next++
		}
	}

	if next < len(assertion.Events) {
		return &AssertionError{
			Type:     AssertEventOrder,
			Expected: fmt.Sprintf("events in order: %v", assertion.Events),
			Actual:   fmt.Sprintf("matched %v, then no %s", assertion.Events[:next], assertion.Events[next]),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertEventContains checks that some event of the type carries every
// expected field (subset match on the JSON payload).
func assertEventContains(r *Result, assertion Assertion) error {
	expected, err := normalize(assertion.Fields)
	if err != nil {
		return fmt.Errorf("%s: fields: %w", AssertEventContains, err)
	}
	fields, _ := expected.(map[string]any)

	for _, event := range r.Trace {
		if event.Type != assertion.Event {
			continue
		}
		var payload any
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			continue
		}
		if matchFields(payload, fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("%s with fields %v", assertion.Event, assertion.Fields),
		Actual:   "not found in trace",
		Trace:    r.Trace,
	}
}

// assertDigestEvents checks the watch labels (and optionally the duration)
// of the Nth digest of a scope.
func assertDigestEvents(r *Result, assertion Assertion) error {
	id := assertion.Scope
	if id == 0 {
		id = 1
	}
	digests := r.Digests(id)
	if len(digests) < assertion.Nth {
		return &AssertionError{
			Type:     AssertDigestEvents,
			Expected: fmt.Sprintf("at least %d digests of scope %d", assertion.Nth, id),
			Actual:   fmt.Sprintf("%d digests", len(digests)),
			Trace:    r.Trace,
		}
	}

	d := digests[assertion.Nth-1]
	watches := make([]string, len(d.Events))
	for i, ev := range d.Events {
		watches[i] = ev.Watch
	}
	if !slices.Equal(watches, assertion.Watches) {
		return &AssertionError{
			Type:     AssertDigestEvents,
			Expected: fmt.Sprintf("digest %d of scope %d timed %v", assertion.Nth, id, assertion.Watches),
			Actual:   fmt.Sprintf("timed %v", watches),
			Trace:    r.Trace,
		}
	}
	if assertion.Time > 0 && d.Time.Std() != assertion.Time {
		return &AssertionError{
			Type:     AssertDigestEvents,
			Expected: fmt.Sprintf("digest %d of scope %d took %s", assertion.Nth, id, assertion.Time),
			Actual:   fmt.Sprintf("took %s", d.Time),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertNoWatch checks that no digest ever timed the watch label.
func assertNoWatch(r *Result, assertion Assertion) error {
	for _, ev := range r.events {
		d, ok := ev.(hint.ScopeDigest)
		if !ok {
			continue
		}
		for _, w := range d.Events {
			if w.Watch == assertion.Watch {
				return &AssertionError{
					Type:     AssertNoWatch,
					Expected: fmt.Sprintf("watch %q never timed", assertion.Watch),
					Actual:   fmt.Sprintf("timed in digest of scope %d", d.ID),
					Trace:    r.Trace,
				}
			}
		}
	}
	return nil
}

// matchFields checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchFields(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two decoded JSON values.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// normalize gives YAML-decoded values the shape encoding/json decodes to,
// so ints compare equal to float64 payload numbers.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result, assertion)
		case AssertEventContains:
			err = assertEventContains(result, assertion)
		case AssertDigestEvents:
			err = assertDigestEvents(result, assertion)
		case AssertNoWatch:
			err = assertNoWatch(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
