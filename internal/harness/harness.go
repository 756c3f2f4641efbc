package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/roach88/scopeprobe/internal/feed"
	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
	"github.com/roach88/scopeprobe/internal/testutil"
)

// fireTimeout bounds how long advance waits for the change notifier's
// timer goroutine.
const fireTimeout = time.Second

// Harness is the scenario execution engine.
// It drives one host tree under a mock clock with a fixed session id.
type Harness struct {
	root    *scope.Scope
	tree    *hint.Tree
	clock   *clock.Mock
	capture *testutil.Capture
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	sinks     []hint.Sink
	scopeOpts []scope.Option
	hintOpts  []hint.Option
	logger    *slog.Logger
}

// WithSink also publishes the run's events to s, e.g. a store.Recorder or a
// feed.Hub.
func WithSink(s hint.Sink) Option {
	return func(c *runConfig) { c.sinks = append(c.sinks, s) }
}

// WithScopeOptions applies host options before the scenario's own settings.
func WithScopeOptions(opts ...scope.Option) Option {
	return func(c *runConfig) { c.scopeOpts = append(c.scopeOpts, opts...) }
}

// WithHintOptions applies instrumentation options before the scenario's own
// settings. The clock and the session are always the harness's.
func WithHintOptions(opts ...hint.Option) Option {
	return func(c *runConfig) { c.hintOpts = append(c.hintOpts, opts...) }
}

// WithLogger sets the logger handed to the host and the instrumentation.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a host tree and attach the instrumentation under a mock clock
// 2. Execute steps in order, checking expected step errors
// 3. Collect the published events as the trace
// 4. Evaluate assertions against the trace
//
// Unexpected step outcomes and failed assertions are reported in
// Result.Errors; the returned error is reserved for invalid scenarios.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	clk := testutil.NewMockClock()
	session := testutil.NewFixedSessionGenerator(scenario.Session).Generate()
	capture := testutil.NewCapture()

	scopeOpts := append([]scope.Option{scope.WithLogger(cfg.logger)}, cfg.scopeOpts...)
	if scenario.TTL > 0 {
		scopeOpts = append(scopeOpts, scope.WithTTL(scenario.TTL))
	}
	root := scope.NewRoot(scopeOpts...)

	hintOpts := append([]hint.Option{hint.WithLogger(cfg.logger)}, cfg.hintOpts...)
	if scenario.Debounce > 0 {
		hintOpts = append(hintOpts, hint.WithDebounce(scenario.Debounce))
	}
	hintOpts = append(hintOpts, hint.WithClock(clk), hint.WithSession(session))

	sink := hint.Fanout(append([]hint.Sink{capture}, cfg.sinks...)...)
	h := &Harness{
		root:    root,
		clock:   clk,
		capture: capture,
		logger:  cfg.logger.With("scenario", scenario.Name),
	}
	h.tree = hint.Attach(root, sink, hintOpts...)

	result := NewResult(session)
	result.Tree = h.tree
	result.Root = root
	result.Clock = clk

	for i, step := range scenario.Steps {
		err := h.execute(step)
		switch {
		case step.Error == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
		case step.Error != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got none", i, step.Op, step.Error))
		case step.Error != "" && !strings.Contains(err.Error(), step.Error):
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", i, step.Op, step.Error, err.Error()))
		}
	}

	result.events = capture.Events()
	for i, ev := range result.events {
		env, err := feed.Encode(ev)
		if err != nil {
			return nil, fmt.Errorf("trace event %d: %w", i+1, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:     int64(i + 1),
			Type:    env.Type,
			Payload: env.Payload,
		})
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Debug("scenario finished",
		"steps", len(scenario.Steps),
		"events", len(result.Trace),
		"pass", result.Pass,
	)
	return result, nil
}

// execute runs one step on the calling goroutine, which owns the tree.
func (h *Harness) execute(step Step) error {
	switch step.Op {
	case OpFlush:
		h.root.Flush()
		return nil
	case OpAdvance:
		return h.advance(step.By)
	case OpObserve:
		return h.tree.Observe(h.target(step), step.Path)
	case OpUnobserve:
		h.tree.Unobserve(h.target(step), step.Path)
		return nil
	case OpAssign:
		return h.tree.Assign(h.target(step), step.Path, step.Value)
	case OpInspect:
		h.tree.Inspect(h.target(step))
		return nil
	case OpRecheck:
		return h.tree.Recheck()
	}

	s, err := h.lookup(step)
	if err != nil {
		return err
	}

	switch step.Op {
	case OpNew:
		s.New()
	case OpDestroy:
		s.Destroy()
	case OpWatch:
		s.Watch(h.watch(step))
	case OpDigest:
		return s.Digest()
	case OpApply:
		if step.Path == "" {
			return s.Apply(nil)
		}
		return s.Apply(func(sc *scope.Scope) error {
			return sc.Assign(step.Path, step.Value)
		})
	case OpSet:
		return s.Assign(step.Path, step.Value)
	case OpCompile:
		link, err := scope.Compile(step.Markup)
		if err != nil {
			return err
		}
		_, err = link(s)
		return err
	case OpPostDigest:
		cost := step.Cost
		s.PostDigest(func() { h.clock.Add(cost) })
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func (h *Harness) target(step Step) scope.ID {
	if step.Scope == 0 {
		return h.root.ID()
	}
	return step.Scope
}

func (h *Harness) lookup(step Step) (*scope.Scope, error) {
	id := h.target(step)
	s := h.root.Find(id)
	if s == nil {
		return nil, fmt.Errorf("scope %d not found", id)
	}
	return s, nil
}

// watch builds the registration of a watch step. Costs are simulated by
// advancing the mock clock inside the getter and the listener.
func (h *Harness) watch(step Step) scope.Watch {
	w := scope.Watch{Expr: step.Expr}
	if step.Cost > 0 {
		expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(step.Expr), scope.OneTimePrefix))
		w.Get = testutil.Costly(h.clock, step.Cost, expr)
	}
	if step.Reaction > 0 {
		w.Listener = testutil.CostlyListener(h.clock, step.Reaction)
	}
	return w
}

// advance moves the clock. When that makes the change notifier due, it
// waits for the notifier's timer goroutine to queue the re-check, so a
// following flush runs it.
func (h *Harness) advance(by time.Duration) error {
	n := h.tree.Notifier()
	due := n.Pending() && !n.WakeAt().After(h.clock.Now().Add(by))
	fires := n.Fires()

	h.clock.Add(by)
	if !due {
		return nil
	}

	deadline := time.Now().Add(fireTimeout)
	for n.Fires() == fires {
		if time.Now().After(deadline) {
			return fmt.Errorf("advance: change notifier did not fire within %s", fireTimeout)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
