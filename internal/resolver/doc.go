// Package resolver implements the controllable host-resolution simulator:
// the coordinator that owns pending requests, per-source rule sets and the
// cache, plus the request, probe and listener objects it hands out, and the
// never-completing hanging variant used for timeout testing.
//
// ARCHITECTURE:
//
// Single-Context Ownership:
// A Resolver belongs to the goroutine that constructed it. Every public
// entry point checks the owner and panics on a violation; the coordinator
// performs no internal locking. The one cross-goroutine surface is the rule
// list inside rules.RuleSet, which carries its own mutex.
//
// Completion Timing:
// Asynchronous completion is a zero-delay unit of work appended to the
// coordinator's FIFO task queue. The owner drains it with RunUntilIdle.
// Each unit re-checks that its request id is still registered and is a
// no-op otherwise, so cancelling a pending request is always safe. In
// synchronous mode requests complete inside Start; in on-demand mode they
// wait for ResolveAllPending or ResolveOnlyRequestNow.
//
// Mutual Weak Ownership:
// Coordinator and request each tolerate the other being torn down first.
// Cross-references go through a liveness token rather than a raw pointer
// check, so a request outliving its coordinator (or the reverse) can never
// touch freed state.
package resolver
