package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/services"
)

// requestWaitGCPStart implements spec §4.5's start-point GCP barrier:
// issue WaitGcpReq(CompleteForceStart) and record its gci as startGCP.
// WaitGCP is called as a plain synchronous request/reply, the same
// convention slave.Engine uses for Dictionary/Distribution/RowStore
// calls (spec §6.3's collaborators are translated to ordinary Go method
// calls, not an async bus).
func (e *Engine) requestWaitGCPStart(ctx context.Context) {
	e.phase = PhaseWaitGCPStart
	gci, err := e.deps.Distribution.WaitGCP(ctx, services.CompleteForceStart)
	if err != nil {
		e.masterAbort(ctx, errs.CodeDistributionError)
		return
	}
	e.startGCP = gci
	e.dispatchFragments(ctx)
}

// requestWaitGCPStop implements spec §4.5's stop-point GCP barrier: loop
// until the reported gci is >= startGCP+3, re-polling at the same 100ms
// cadence as the write-rate governor's own periodic tick (spec §5's
// closest named suspension-point delay; the spec does not name a
// distinct delay for this loop).
func (e *Engine) requestWaitGCPStop(ctx context.Context) {
	e.phase = PhaseWaitGCPStop
	e.pollWaitGCPStop(ctx)
}

func (e *Engine) pollWaitGCPStop(ctx context.Context) {
	if e.aborting {
		return
	}
	gci, err := e.deps.Distribution.WaitGCP(ctx, services.CompleteForceStart)
	if err != nil {
		e.masterAbort(ctx, errs.CodeDistributionError)
		return
	}
	if gci < e.startGCP+3 {
		e.deps.Loop.Continue(nodeloop.Yield100ms, func() { e.pollWaitGCPStop(ctx) })
		return
	}
	e.stopGCP = gci
	e.dispatchStopBackup(ctx)
}
