package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/models"
)

// masterAbort implements spec §4.5's Abort: idempotent, records the
// error code once, cancels the current phase, then emits BackupAbortRep
// to the client (wait-started flag honoured) and broadcasts
// AbortBackupOrd(BackupFailure) to all participants.
//
// Phase cancellation: a pending sequence retry or mutex acquisition
// stops once it observes e.aborting (requestSequence, afterSequence
// and every onXxxGathered callback check it first and return without
// replying; the client hears of the abort from finishAbort); waiting on a phase's
// fan-in (define/start/stop) lets the gather finish and discards the
// result, since those callbacks also check e.aborting; waiting on the
// fragment scan transitions to the stop path below, aborting every
// outstanding scan and waiting for the fan-in counter to quiesce.
func (e *Engine) masterAbort(ctx context.Context, code errs.Code) {
	if e.aborting {
		return
	}
	e.recordError(code, "master abort", nil)
	e.aborting = true
	prevPhase := e.phase
	e.phase = PhaseAborting

	if prevPhase == PhaseBackupFragment {
		for _, id := range e.nodes.IDs() {
			e.deps.Transport.AbortOrd(ctx, id, AbortReasonScan)
		}
		if e.outFrags == 0 {
			e.onAllFragmentsQuiesced(ctx)
		}
		return
	}

	e.finishAbort(ctx)
}

// onAllFragmentsQuiesced is reached once every outstanding
// BackupFragmentReq this engine dispatched has replied (or been
// synthetically completed by node-failure injection), the precondition
// for finishing an abort that interrupted the fragment-scanning phase.
func (e *Engine) onAllFragmentsQuiesced(ctx context.Context) {
	e.finishAbort(ctx)
}

func (e *Engine) finishAbort(ctx context.Context) {
	e.releaseMutexes(ctx)

	if e.flags.Has(models.FlagWaitStarted) {
		e.deps.Reply("BackupAbortRep", e.err.Get(), map[string]any{"backupId": e.backupID})
	}
	for _, id := range e.nodes.IDs() {
		e.deps.Transport.AbortOrd(ctx, id, AbortReasonBackupFailure)
	}
}
