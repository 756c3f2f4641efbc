package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scopeprobe/internal/scope"
)

// Scenario is a scripted session against an instrumented scope tree.
// Steps drive the host; assertions check the event feed it produced.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the fixed session id stamped on the run.
	// If empty, defaults to "test-session" so golden traces are stable.
	Session string `yaml:"session,omitempty"`

	// Debounce overrides the change notifier window (e.g. "10ms").
	Debounce time.Duration `yaml:"debounce,omitempty"`

	// TTL overrides the host's digest iteration limit.
	TTL int `yaml:"ttl,omitempty"`

	// Steps run in order against the tree.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded feed.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on the tree. Scope defaults to the root (1).
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Scope is the target scope, or the parent for "new".
	Scope scope.ID `yaml:"scope,omitempty"`

	// Path is the model path for set, apply, observe, unobserve and assign.
	Path string `yaml:"path,omitempty"`

	// Value is assigned by set, apply and assign.
	Value any `yaml:"value,omitempty"`

	// Expr is the watch expression. A "::" prefix makes it one-time.
	Expr string `yaml:"expr,omitempty"`

	// Cost is the simulated evaluation time of a watch expression or a
	// post-digest task.
	Cost time.Duration `yaml:"cost,omitempty"`

	// Reaction is the simulated time a watch listener takes.
	Reaction time.Duration `yaml:"reaction,omitempty"`

	// Markup is the template compiled and linked by "compile".
	Markup string `yaml:"markup,omitempty"`

	// By is how far "advance" moves the clock.
	By time.Duration `yaml:"by,omitempty"`

	// Error, when set, expects the step to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpNew        = "new"
	OpDestroy    = "destroy"
	OpWatch      = "watch"
	OpDigest     = "digest"
	OpApply      = "apply"
	OpSet        = "set"
	OpObserve    = "observe"
	OpUnobserve  = "unobserve"
	OpAssign     = "assign"
	OpInspect    = "inspect"
	OpRecheck    = "recheck"
	OpCompile    = "compile"
	OpPostDigest = "post_digest"
	OpAdvance    = "advance"
	OpFlush      = "flush"
)

var knownOps = map[string]bool{
	OpNew: true, OpDestroy: true, OpWatch: true, OpDigest: true, OpApply: true,
	OpSet: true, OpObserve: true, OpUnobserve: true, OpAssign: true,
	OpInspect: true, OpRecheck: true, OpCompile: true, OpPostDigest: true,
	OpAdvance: true, OpFlush: true,
}

// Assertion validates the feed.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_count": Type occurs exactly Count times (optionally for Scope)
	// - "event_order": Types occur in this relative order
	// - "event_contains": an event of Type carries all of Fields
	// - "digest_events": the Nth digest of Scope recorded Watches in order
	// - "no_watch": Watch never appears in any digest
	Type string `yaml:"type"`

	// Event is the event type tag (event_count, event_contains).
	Event string `yaml:"event,omitempty"`

	// Scope restricts event_count to one scope and selects the scope of
	// digest_events.
	Scope scope.ID `yaml:"scope,omitempty"`

	// Count is the expected number of occurrences (event_count).
	Count int `yaml:"count"`

	// Events is the expected order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Fields are matched as a subset of the payload (event_contains).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Nth selects the digest, counting from 1 (digest_events).
	Nth int `yaml:"nth,omitempty"`

	// Watches is the expected list of watch labels (digest_events).
	Watches []string `yaml:"watches,omitempty"`

	// Time is the expected digest duration (digest_events, optional).
	Time time.Duration `yaml:"time,omitempty"`

	// Watch is the label that must never be timed (no_watch).
	Watch string `yaml:"watch,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount    = "event_count"
	AssertEventOrder    = "event_order"
	AssertEventContains = "event_contains"
	AssertDigestEvents  = "digest_events"
	AssertNoWatch       = "no_watch"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if s.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(s Step) error {
	if s.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !knownOps[s.Op] {
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.Cost < 0 || s.Reaction < 0 || s.By < 0 {
		return fmt.Errorf("%s: durations must not be negative", s.Op)
	}

	switch s.Op {
	case OpWatch:
		if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s.Expr), scope.OneTimePrefix)) == "" {
			return fmt.Errorf("watch: expr is required")
		}
	case OpSet, OpAssign:
		if s.Path == "" {
			return fmt.Errorf("%s: path is required", s.Op)
		}
	case OpCompile:
		if strings.TrimSpace(s.Markup) == "" {
			return fmt.Errorf("compile: markup is required")
		}
	case OpAdvance:
		if s.By == 0 {
			return fmt.Errorf("advance: by is required")
		}
	}
	return nil
}

// validateAssertion checks that assertion has required fields for its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("event_count: event is required")
		}
		if a.Count < 0 {
			return fmt.Errorf("event_count: count must not be negative")
		}
	case AssertEventOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("event_order: events must have at least 2 entries")
		}
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("event_contains: event is required")
		}
	case AssertDigestEvents:
		if a.Nth < 1 {
			return fmt.Errorf("digest_events: nth must be at least 1")
		}
	case AssertNoWatch:
		if a.Watch == "" {
			return fmt.Errorf("no_watch: watch is required")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
