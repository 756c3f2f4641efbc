// Package hint instruments a scope tree and publishes what it observes as a
// stream of events.
//
// Attach installs a scope.Interceptor on a tree and returns a Tree handle.
// From then on the instrumentation:
//
//   - keeps a registry of live scopes (scope:new, scope:destroy)
//   - times every digest, per watcher and per phase (scope:digest)
//   - labels each scope from its rendered element (scope:link)
//   - re-checks caller-observed model paths after each apply, behind a
//     trailing debounce, and reports changed summaries (model:change)
//
// Everything runs on the tree's own goroutine. The only asynchronous edges
// are the debounce timer and the deferred link lookup; both post work back to
// the tree with Scope.Defer and treat a scope that disappeared in the
// meantime as a no-op.
package hint
