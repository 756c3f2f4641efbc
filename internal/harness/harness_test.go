package harness

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/testutil"
)

func scenarioOf(steps ...Step) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline test scenario",
		Steps:       steps,
	}
}

func traceTypes(r *Result) []string {
	out := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		out[i] = ev.Type
	}
	return out
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(scenarioOf(Step{Op: OpNew}))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "test-session", result.Session)
	assert.Equal(t, []string{hint.TypeScopeNew, hint.TypeScopeNew}, traceTypes(result))
	assert.JSONEq(t, `{"parent":1,"child":2}`, string(result.Trace[1].Payload))
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, 1, result.Root.Pending(), "the child's link is deferred to the next tick")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(nil)
	require.Error(t, err)

	_, err = Run(&Scenario{Name: "x", Description: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps")
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	result, err := Run(scenarioOf(Step{Op: OpObserve, Path: "a[x]"}))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] observe: unexpected error")
	assert.Contains(t, result.Errors[0], "PARSE_ERROR")
}

func TestRun_ExpectedStepError(t *testing.T) {
	result, err := Run(scenarioOf(
		Step{Op: OpObserve, Path: "a[x]", Error: "PARSE_ERROR"},
		Step{Op: OpDestroy, Scope: 9, Error: "scope 9 not found"},
	))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectedErrorMissingFails(t *testing.T) {
	result, err := Run(scenarioOf(Step{Op: OpNew, Error: "boom"}))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error containing "boom", got none`)
}

func TestRun_ExpectedErrorMismatchFails(t *testing.T) {
	result, err := Run(scenarioOf(Step{Op: OpObserve, Path: "a[x]", Error: "ASSIGN_ERROR"}))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error containing "ASSIGN_ERROR"`)
}

func TestRun_AdvanceHonoursDebounceWindow(t *testing.T) {
	scenario := scenarioOf(
		Step{Op: OpSet, Path: "a", Value: 1},
		Step{Op: OpObserve, Path: "a"},
		Step{Op: OpApply, Path: "a", Value: 2},
		Step{Op: OpAdvance, By: 5 * time.Millisecond},
		Step{Op: OpFlush},
	)
	scenario.Debounce = 10 * time.Millisecond

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(0), result.Tree.Rechecks(), "window has not elapsed")
	assert.True(t, result.Tree.Notifier().Pending())

	scenario.Steps = append(scenario.Steps,
		Step{Op: OpAdvance, By: 5 * time.Millisecond},
		Step{Op: OpFlush},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertEventContains, Event: hint.TypeModelChange, Fields: map[string]any{"path": "a", "oldValue": 1, "value": 2}},
	}

	result, err = Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Tree.Rechecks())
}

func TestRun_AssignCreatesPathAndRechecks(t *testing.T) {
	scenario := scenarioOf(
		Step{Op: OpObserve, Path: "user.name"},
		Step{Op: OpAssign, Path: "user.name", Value: "ada"},
		Step{Op: OpAdvance, By: hint.DefaultDebounce},
		Step{Op: OpFlush},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Event: hint.TypeModelChange, Count: 4},
		{Type: AssertEventContains, Event: hint.TypeModelChange, Fields: map[string]any{"path": "user.name", "oldValue": nil, "value": "ada"}},
		{Type: AssertEventContains, Event: hint.TypeModelChange, Fields: map[string]any{"path": "user", "value": map[string]any{"name": "ada"}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_OneTimeWatchIsNeverTimed(t *testing.T) {
	scenario := scenarioOf(
		Step{Op: OpSet, Path: "title", Value: "Shop"},
		Step{Op: OpWatch, Expr: "::title", Cost: 2 * time.Millisecond},
		Step{Op: OpWatch, Expr: "count"},
		Step{Op: OpDigest},
		Step{Op: OpDigest},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertNoWatch, Watch: "title"},
		{Type: AssertNoWatch, Watch: "::title"},
		{Type: AssertDigestEvents, Nth: 1, Watches: []string{"count", "count"}, Time: 4 * time.Millisecond},
		{Type: AssertDigestEvents, Nth: 2, Watches: []string{"count"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithSinkSeesEveryEvent(t *testing.T) {
	capture := testutil.NewCapture()

	result, err := Run(scenarioOf(
		Step{Op: OpNew},
		Step{Op: OpFlush},
		Step{Op: OpDestroy, Scope: 2},
	), WithSink(capture))
	require.NoError(t, err)

	assert.Equal(t, traceTypes(result), capture.Types())
	assert.Equal(t, []string{
		hint.TypeScopeNew,
		hint.TypeScopeNew,
		hint.TypeScopeLink,
		hint.TypeScopeDestroy,
	}, capture.Types())
}

func TestRun_WithHintOptions(t *testing.T) {
	scenario := scenarioOf(
		Step{Op: OpNew},
		Step{Op: OpCompile, Scope: 2, Markup: `<section data-role="cart" ng-app="shop"></section>`},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertEventContains, Event: hint.TypeScopeLink, Fields: map[string]any{"id": 2, "descriptor": `data-role="cart"`}},
	}

	result, err := Run(scenario, WithHintOptions(hint.WithMarkerAttributes("data-role")))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_InspectPublishesScope(t *testing.T) {
	result, err := Run(scenarioOf(
		Step{Op: OpNew},
		Step{Op: OpInspect, Scope: 2},
	))
	require.NoError(t, err)
	require.True(t, result.Pass)

	inspected := hint.Inspected()
	require.NotNil(t, inspected)
	assert.Equal(t, result.Root.Find(2), inspected)
}

func TestRun_UnobserveStopsTransitions(t *testing.T) {
	scenario := scenarioOf(
		Step{Op: OpSet, Path: "a", Value: 1},
		Step{Op: OpObserve, Path: "a"},
		Step{Op: OpUnobserve, Path: "a"},
		Step{Op: OpApply, Path: "a", Value: 2},
		Step{Op: OpAdvance, By: hint.DefaultDebounce},
		Step{Op: OpFlush},
	)
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Event: hint.TypeModelChange, Count: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, int64(1), result.Tree.Rechecks())
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario := scenarioOf(Step{Op: OpNew})
	scenario.Assertions = []Assertion{
		{Type: AssertEventCount, Event: hint.TypeScopeDestroy, Count: 1},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], "Assertion failed: event_count"))
}
