package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/models"
)

// dispatchStopBackup implements spec §4.5's StopBackup fan-out:
// broadcast StopBackupReq{startGCP, stopGCP}, accumulate log-bytes and
// log-records counters from each conf.
func (e *Engine) dispatchStopBackup(ctx context.Context) {
	e.phase = PhaseStopBackup
	ids := e.nodes.IDs()

	real := make(chan StopBackupReply, len(ids))
	for _, id := range ids {
		go func(id uint32) {
			ch := e.deps.Transport.StopBackup(ctx, id, e.startGCP, e.stopGCP)
			if r, ok := <-ch; ok {
				real <- r
			}
		}(id)
	}

	merged, inject := mergeInject[StopBackupReply](ctx, real)
	e.currentInject = func(nodeID uint32) {
		inject <- StopBackupReply{NodeID: nodeID, Err: errs.New(errs.CodeBackupFailureDueToNodeFail, "node failed during StopBackup")}
	}

	gather(e.deps.Loop, ctx, merged, len(ids), func(replies []StopBackupReply) {
		e.onStopBackupGathered(ctx, replies)
	})
}

func (e *Engine) onStopBackupGathered(ctx context.Context, replies []StopBackupReply) {
	e.currentInject = nil
	if e.aborting {
		return
	}
	for _, r := range replies {
		if r.Err != nil {
			e.masterAbort(ctx, errs.CodeStopBackupRef)
			return
		}
		e.logBytes += r.LogBytes
		e.logRecords += r.LogRecords
	}

	// "On all-replies, broadcast AbortBackupOrd(BackupComplete), emit
	// BackupCompleteRep to the client if the wait-completed flag is set,
	// and release" (spec §4.5).
	for _, id := range e.nodes.IDs() {
		e.deps.Transport.AbortOrd(ctx, id, AbortReasonBackupComplete)
	}
	if e.flags.Has(models.FlagWaitCompleted) {
		e.deps.Reply("BackupCompleteRep", nil, map[string]any{
			"backupId":       e.backupID,
			"noOfRecords":    e.records,
			"noOfBytes":      e.bytes,
			"noOfLogBytes":   e.logBytes,
			"noOfLogRecords": e.logRecords,
		})
	}
	e.phase = PhaseNone
}
