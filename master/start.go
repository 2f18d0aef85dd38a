package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
)

// dispatchStartBackup fans StartBackupReq out to every participant
// (spec §4.5's phase machine, second gsn).
func (e *Engine) dispatchStartBackup(ctx context.Context) {
	e.phase = PhaseDefineBackup // kept until gathered, then advanced below
	ids := e.nodes.IDs()

	real := make(chan StartBackupReply, len(ids))
	for _, id := range ids {
		go func(id uint32) {
			ch := e.deps.Transport.StartBackup(ctx, id)
			if r, ok := <-ch; ok {
				real <- r
			}
		}(id)
	}

	merged, inject := mergeInject[StartBackupReply](ctx, real)
	e.currentInject = func(nodeID uint32) {
		inject <- StartBackupReply{NodeID: nodeID, Err: errs.New(errs.CodeBackupFailureDueToNodeFail, "node failed during StartBackup")}
	}

	gather(e.deps.Loop, ctx, merged, len(ids), func(replies []StartBackupReply) {
		e.onStartBackupGathered(ctx, replies)
	})
}

func (e *Engine) onStartBackupGathered(ctx context.Context, replies []StartBackupReply) {
	e.currentInject = nil
	if e.aborting {
		return
	}
	for _, r := range replies {
		if r.Err != nil {
			e.masterAbort(ctx, errs.CodeStartBackupRef)
			return
		}
	}
	e.requestWaitGCPStart(ctx)
}
