// Package writerate implements WriteRateGovernor (spec §4.2): a
// wall-clock-driven token bucket enforcing a configured per-period word
// quota across all of a node's backup file writers, tolerating
// single-period overflow and monitoring long-window averages.
//
// The engineering shape (a package-level fakeable clock, a narrow mutex
// guarding a small set of counters, the hot-path write-ready probe
// included) follows catrate/limiter.go; the rate algorithm
// itself — periodic overflow carry-forward rather than a sliding window
// — is specific to this subsystem.
package writerate
