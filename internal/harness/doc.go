// Package harness runs scripted sessions against an instrumented scope tree.
//
// A scenario drives the reference host (package scope) with the
// instrumentation (package hint) attached, under a mock clock and a fixed
// session id, and checks the published event feed. Simulated costs advance
// the mock clock, so digest timings are exact and traces are reproducible
// byte for byte.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: cart_totals
//	description: "What this scenario validates"
//	debounce: 10ms
//	steps:
//	  - op: watch
//	    expr: cart.total
//	    cost: 5ms
//	    reaction: 3ms
//	  - op: observe
//	    path: cart.total
//	  - op: apply
//	    path: cart.total
//	    value: 12
//	  - op: advance
//	    by: 10ms
//	  - op: flush
//	assertions:
//	  - type: event_count
//	    event: model:change
//	    count: 3
//	  - type: digest_events
//	    nth: 1
//	    watches: [cart.total, cart.total]
//
// # Steps
//
// Scope defaults to the root (id 1). "new" creates a child of Scope.
//   - new, destroy, digest, flush: host tree operations
//   - watch: register Expr; cost and reaction simulate evaluation and
//     listener time; a "::" prefix makes the binding one-time
//   - apply: assign Path (if set) and digest the whole tree
//   - set: assign Path without digesting
//   - observe, unobserve, assign, inspect, recheck: instrumentation
//     operations on the tree
//   - compile: compile Markup and link it to Scope
//   - post_digest: queue a deferred task that takes Cost
//   - advance: move the clock By, letting a due change notifier queue its
//     re-check for the next flush
//
// Any step may set error to expect a failure containing that text.
//
// # Assertions
//
//   - event_count: event occurs exactly count times (optionally per scope)
//   - event_order: events occur in this relative order
//   - event_contains: some event carries all of fields
//   - digest_events: the nth digest of scope timed these watches
//   - no_watch: the watch label never appears in any digest
//
// # Golden Files
//
// Golden files hold the trace as JSON lines and live in testdata/golden.
// Update them with go test -update.
package harness
