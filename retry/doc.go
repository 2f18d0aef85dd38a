// Package retry implements the bounded retry budgets spec §7 calls out
// by name: "sequence service transient failure (retried up to 3×)" and
// "scan transient error (retried up to 10×)". A Policy is a plain value
// (max attempts, delay) with no goroutine or timer of its own — the
// caller supplies the scheduling primitive (nodeloop.Loop.Continue
// in production, a synchronous stand-in in tests), matching the
// cooperative run-to-completion model of spec §5.
package retry
