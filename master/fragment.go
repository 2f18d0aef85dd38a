package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
)

// dispatchFragments implements spec §4.5's fragment scheduling: for each
// table in turn, for each fragment whose owner is alive and not
// scanning/scanned, mark scanning, decrement idle-count, dispatch
// BackupFragmentReq to the owner. Continue until every fragment is
// scanning/scanned, or every node is busy. Fragments are walked in
// (tableId, fragmentId) order (buildFragmentSchedule already sorted
// them); nodes are never explicitly rotated beyond that order.
func (e *Engine) dispatchFragments(ctx context.Context) {
	e.phase = PhaseBackupFragment
	if e.aborting {
		return
	}

	dispatchedAny := false
	for i := range e.fragments {
		f := &e.fragments[i]
		if f.scanning || f.scanned {
			continue
		}
		if !e.nodes.Has(f.node) || e.busy[f.node] {
			continue
		}
		f.scanning = true
		e.busy[f.node] = true
		e.outFrags++
		dispatchedAny = true
		e.sendBackupFragment(ctx, f.tableID, f.fragmentID, f.node)
	}

	if !dispatchedAny && e.outFrags == 0 && e.allFragmentsScanned() {
		e.requestWaitGCPStop(ctx)
	}
	// else: wait for in-flight BackupFragmentConf/Ref replies to drive the
	// next round via onFragmentReply — no further action here.
}

func (e *Engine) allFragmentsScanned() bool {
	for i := range e.fragments {
		if !e.fragments[i].scanned {
			return false
		}
	}
	return true
}

func (e *Engine) sendBackupFragment(ctx context.Context, tableID, fragmentID, node uint32) {
	ch := e.deps.Transport.BackupFragment(ctx, node, tableID, fragmentID)
	go func() {
		r, ok := <-ch
		_ = e.deps.Loop.Submit(func() {
			if ok {
				e.onFragmentReply(ctx, r)
			} else {
				e.onFragmentReply(ctx, BackupFragmentReply{NodeID: node, TableID: tableID, FragmentID: fragmentID,
					Err: errs.New(errs.CodeBackupFailureDueToNodeFail, "node failed during BackupFragment")})
			}
		})
	}()
}

func (e *Engine) onFragmentReply(ctx context.Context, r BackupFragmentReply) {
	e.outFrags--
	delete(e.busy, r.NodeID)

	if e.aborting {
		if e.outFrags == 0 {
			e.onAllFragmentsQuiesced(ctx)
		}
		return
	}

	if r.Err != nil {
		e.masterAbort(ctx, errs.CodeBackupFragmentRef)
		return
	}

	for i := range e.fragments {
		f := &e.fragments[i]
		if f.tableID == r.TableID && f.fragmentID == r.FragmentID {
			f.scanned = true
			f.scanning = false
			break
		}
	}

	e.records += r.Records
	e.bytes += r.Bytes

	_, _ = e.completeBatcher.Submit(ctx, fragCompleteJob{tableID: r.TableID, fragmentID: r.FragmentID, owner: r.NodeID, records: r.Records})

	e.dispatchFragments(ctx)
}

// broadcastFragmentComplete sends one BackupFragmentCompleteRep batch to
// every participant other than the fragment's own owner (spec §4.5:
// "emit a BackupFragmentCompleteRep to all other participants so their
// local totals can be displayed").
func (e *Engine) broadcastFragmentComplete(ctx context.Context, jobs []fragCompleteJob) {
	ids := e.nodes.IDs()
	for _, job := range jobs {
		for _, id := range ids {
			if id == job.owner {
				continue
			}
			e.deps.Transport.FragmentComplete(ctx, id, job.tableID, job.fragmentID, job.records)
		}
	}
}
