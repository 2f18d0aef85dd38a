package diag

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// DefaultRates scales catrate's own sliding-window example down for an
// operator-facing dump channel: a handful of dump codes per second,
// capped further over a minute so a scripted flood still gets
// throttled.
var DefaultRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// Limiter rate-limits dump-code invocations per node (spec §6.5),
// wrapping catrate.Limiter the same way writerate.Governor's token-
// bucket is grounded on catrate's style without reusing its code.
type Limiter struct {
	cr *catrate.Limiter
}

// NewLimiter builds a Limiter from a sliding-window rate map; see
// catrate.NewLimiter for the validity rules (positive, monotonic rates).
func NewLimiter(rates map[time.Duration]int) *Limiter {
	return &Limiter{cr: catrate.NewLimiter(rates)}
}

// Admit reports whether nodeID may issue one more dump command now. A
// nil Limiter, like a nil/empty catrate.Limiter, admits everything.
func (l *Limiter) Admit(nodeID uint32) bool {
	if l == nil {
		return true
	}
	_, ok := l.cr.Allow(nodeID)
	return ok
}
