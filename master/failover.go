package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
)

// HandleNodeFailure implements spec §4.5's node-failure handling for
// this engine's own backup. failedNodes is the cluster-membership
// service's failed-node bitmask, already decoded to node ids.
// newMasterRef is the newly-elected coordinator, resolved by the
// cluster-membership service — equal to the previous masterRef if the
// old master survived.
func (e *Engine) HandleNodeFailure(ctx context.Context, failedNodes []uint32, newMasterRef uint32) {
	failed := make(map[uint32]bool, len(failedNodes))
	for _, id := range failedNodes {
		failed[id] = true
		if e.nodes != nil {
			e.nodes.Remove(id)
		}
		delete(e.busy, id)
	}

	oldMasterFailed := failed[e.masterRef]
	e.masterRef = newMasterRef

	if oldMasterFailed {
		// Point 2: this engine only exists on a node that is (or is
		// becoming) master for this backup; a promoted coordinator issues
		// masterAbort once it takes over. The corresponding slave-state
		// force-transition (spec §4.5, point 2's failoverTarget mapping)
		// is slave.Engine.Failover, invoked by the same orchestrator that
		// promotes this engine — a separate concern from MasterPhase.
		e.masterAbort(ctx, errs.CodeBackupFailureDueToNodeFail)
		return
	}

	// Point 3: master survives, but some participants died — inject
	// synthetic *Ref replies so existing fan-in counters still complete.
	for id := range failed {
		switch {
		case e.currentInject != nil:
			e.currentInject(id)
		case e.phase == PhaseBackupFragment:
			e.injectFragmentFailure(ctx, id)
		}
	}
}

// injectFragmentFailure synthesizes a BackupFragmentRef for the one
// fragment (if any) currently dispatched to a node that just died,
// since the fragment phase's fan-in is driven by onFragmentReply
// directly rather than a gather round.
func (e *Engine) injectFragmentFailure(ctx context.Context, nodeID uint32) {
	for i := range e.fragments {
		f := &e.fragments[i]
		if f.node == nodeID && f.scanning {
			e.onFragmentReply(ctx, BackupFragmentReply{
				NodeID: nodeID, TableID: f.tableID, FragmentID: f.fragmentID,
				Err: errs.New(errs.CodeBackupFailureDueToNodeFail, "node failed during BackupFragment"),
			})
			return
		}
	}
}
