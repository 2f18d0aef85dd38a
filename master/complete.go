package master

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// fragCompleteJob is one BackupFragmentCompleteRep destined for every
// other participant (spec §4.5's fragment scheduling: "emit a
// BackupFragmentCompleteRep to all other participants so their local
// totals can be displayed").
type fragCompleteJob struct {
	tableID, fragmentID, owner uint32
	records                    uint64
}

// newCompleteBatcher groups completion notices (batch size 16, the same
// cadence as a fragment scan's row batching, per spec §4.4) before
// broadcasting them, so a fast fragment-scanning round does not flood
// every other participant with one message per fragment.
func newCompleteBatcher(send func(jobs []fragCompleteJob)) *microbatch.Batcher[fragCompleteJob] {
	return microbatch.NewBatcher[fragCompleteJob](&microbatch.BatcherConfig{
		MaxSize:        16,
		FlushInterval:  20 * time.Millisecond,
		MaxConcurrency: 1,
	}, func(ctx context.Context, jobs []fragCompleteJob) error {
		send(jobs)
		return nil
	})
}
