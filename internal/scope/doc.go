// Package scope implements the host scope tree that the instrumentation in
// package hint attaches to.
//
// A tree is a hierarchy of scopes, each owning a model (map[string]any), a
// list of watchers and a set of children. Digest walks a subtree evaluating
// every watcher until no watched value changes, then drains the post-digest
// queue.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every mutation of a tree happens on one goroutine. Other goroutines submit
// work with Defer; the owner either runs Run(ctx) or drains the tick queue
// with Flush. Timer callbacks and network handlers never touch a scope
// directly.
//
// Interception:
// The seven lifecycle operations (watch registration, digest, child creation,
// destruction, apply, post-digest shift and template linking) dispatch through
// the Interceptors installed with Use. An interceptor receives a next
// function and decides what to do before and after it runs; the most recently
// installed interceptor is outermost.
//
// Identity:
// Scope ids come from a per-tree Sequence. The root is 1; ids are never
// reused within a tree.
package scope
