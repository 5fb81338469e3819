// Package rules implements the ordered pattern-matching rule engine that
// maps hostnames to simulated resolution outcomes.
//
// A RuleSet is scanned in insertion order and the first matching rule wins.
// Rule configuration and rule resolution may run on different goroutines,
// so the rule list is the one mutex-guarded surface of the simulator.
//
// Rule mutation after DisableModifications is a precondition violation and
// panics; it is never a recoverable error.
package rules
