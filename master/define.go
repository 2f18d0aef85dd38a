package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/models"
)

// dispatchDefineBackup fans DefineBackupReq out to every participant
// (spec §4.5: "Send DefineBackupReq to every node in the participating
// set"). The master's own node is included — Transport is responsible
// for executing that one direct rather than through the bus (spec
// §4.5's "Signal self-loops" note).
func (e *Engine) dispatchDefineBackup(ctx context.Context) {
	e.phase = PhaseDefineBackup
	ids := e.nodes.IDs()

	real := make(chan DefineBackupReply, len(ids))
	req := DefineBackupRequest{
		BackupID:   e.backupID,
		BackupKey1: e.backupKey1,
		ClientRef:  e.clientRef,
		Flags:      e.flags,
		Nodes:      e.nodes,
		MasterRef:  e.masterRef,
		UndoLog:    e.flags.Has(models.FlagUseUndoLog),
	}
	for _, id := range ids {
		go func(id uint32) {
			ch := e.deps.Transport.DefineBackup(ctx, id, req)
			if r, ok := <-ch; ok {
				real <- r
			}
		}(id)
	}

	merged, inject := mergeInject[DefineBackupReply](ctx, real)
	e.currentInject = func(nodeID uint32) {
		inject <- DefineBackupReply{NodeID: nodeID, Err: errs.New(errs.CodeBackupFailureDueToNodeFail, "node failed during DefineBackup")}
	}

	gather(e.deps.Loop, ctx, merged, len(ids), func(replies []DefineBackupReply) {
		e.onDefineBackupGathered(ctx, replies)
	})
}

func (e *Engine) onDefineBackupGathered(ctx context.Context, replies []DefineBackupReply) {
	e.currentInject = nil
	if e.aborting {
		return
	}
	for _, r := range replies {
		if r.Err != nil {
			e.masterAbort(ctx, errs.CodeDefineBackupRef)
			return
		}
	}

	e.releaseMutexes(ctx)
	e.deps.Reply("BackupConf", nil, map[string]any{"backupId": e.backupID, "nodes": e.nodes.IDs()})
	e.dispatchStartBackup(ctx)
}
