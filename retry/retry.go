package retry

import (
	"fmt"
	"time"
)

// Policy is a fixed-delay, bounded-attempt retry budget. Two instances
// are named in spec §7: Sequence (3 attempts, 300ms) and Scan (10
// attempts, 100ms).
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Sequence is the retry budget for transient sequence-service failures
// (spec §4.3.1: "retry up to 3 times ... with a 300ms delay").
var Sequence = Policy{MaxAttempts: 3, Delay: 300 * time.Millisecond}

// Scan is the retry budget for transient row-store scan errors (spec
// §7: "retried up to 10 times").
var Scan = Policy{MaxAttempts: 10, Delay: 100 * time.Millisecond}

// ErrExhausted is returned by Counter.Attempt once MaxAttempts have
// all failed; the caller should then treat the failure as permanent
// and apply spec §7's propagation policy (BackupRef, abort, etc).
type ErrExhausted struct {
	Policy  Policy
	Last    error
	Attempt int
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("retry: exhausted %d/%d attempts: %v", e.Attempt, e.Policy.MaxAttempts, e.Last)
}

func (e *ErrExhausted) Unwrap() error { return e.Last }

// Counter tracks in-progress attempts against a Policy for one logical
// operation (e.g. one NextVal call, one fragment scan). It is not
// safe for concurrent use — each caller owns its own Counter, matching
// the single-threaded-per-node execution model of spec §5.
type Counter struct {
	policy  Policy
	attempt int
}

// NewCounter starts a fresh attempt counter against p.
func NewCounter(p Policy) *Counter {
	return &Counter{policy: p}
}

// Attempt records a failed attempt and reports whether the caller
// should retry after Policy.Delay, or has exhausted the budget.
// On exhaustion it returns a non-nil *ErrExhausted wrapping err.
func (c *Counter) Attempt(err error) (retryAfter time.Duration, exhausted error) {
	c.attempt++
	if c.attempt >= c.policy.MaxAttempts {
		return 0, &ErrExhausted{Policy: c.policy, Last: err, Attempt: c.attempt}
	}
	return c.policy.Delay, nil
}

// Attempts reports how many attempts have been recorded so far.
func (c *Counter) Attempts() int { return c.attempt }
