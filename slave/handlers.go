package slave

import (
	"context"
	"encoding/binary"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/flowbuffer"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/retry"
	"github.com/ndbcluster/backupcoord/services"
	"github.com/ndbcluster/backupcoord/wireformat"
)

// appendFrame writes a whole wire-format frame (already word-aligned
// by the wireformat package's Append* functions) into fb. It returns
// false, writing nothing, when fb has no room for the whole frame.
func appendFrame(fb *flowbuffer.FlowBuffer, frame []byte) bool {
	words := make([]uint32, len(frame)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(frame[i*4:])
	}
	window, ok := fb.GetWritePtr(len(words))
	if !ok {
		return false
	}
	copy(window, words)
	fb.UpdateWritePtr(len(words))
	return true
}

// StartBackup implements spec §4.4's StartBackup (DEFINED → STARTED):
// install the three CDC triggers on every enrolled table, then start
// every file's drain task.
func (e *Engine) StartBackup(ctx context.Context) error {
	for i := range e.backup.Tables {
		tbl := &e.backup.Tables[i]
		if tbl.TableType.IsIndexOrMeta() {
			continue
		}
		trigType := services.TriggerSubscription
		if e.backup.Flags.Has(models.FlagUseUndoLog) {
			trigType = services.TriggerSubscriptionBefore
		}
		for _, ev := range [3]models.Event{models.EventInsert, models.EventUpdate, models.EventDelete} {
			triggerID, err := e.deps.Dictionary.CreateTrigger(ctx, services.CreateTriggerRequest{
				TableID:              tbl.TableID,
				Event:                uint32(ev),
				Type:                 trigType,
				DetachedActionTime:   true,
				MonitorReplicas:      true,
				MonitorAllAttributes: false,
				AttributeMask:        tbl.ReadAttrTemplate,
			})
			if err != nil {
				return e.startRef(errs.Wrap(errs.CodeDictionaryError, "create trigger", err))
			}
			th := e.backup.AddTrigger(models.Trigger{TableHandle: models.TableHandle(i), TableID: tbl.TableID, Event: ev, TriggerID: triggerID})
			switch ev {
			case models.EventInsert:
				tbl.Triggers.Insert = th
			case models.EventUpdate:
				tbl.Triggers.Update = th
			case models.EventDelete:
				tbl.Triggers.Delete = th
			}
			tbl.Triggers.Allocated[ev] = true
		}
	}

	if err := e.files.StartDrains(); err != nil {
		return e.startRef(errs.Wrap(errs.CodeOutOfFileRecords, "start drains", err))
	}

	e.setState(StateStarted)
	e.deps.Reply("StartBackupConf", nil, nil)
	return nil
}

func (e *Engine) startRef(err *errs.Error) error {
	e.err.Record(err)
	e.setState(StateAborting)
	e.deps.Reply("StartBackupRef", err, nil)
	return err
}

// BackupFragment implements spec §4.4's BackupFragment (STARTED →
// SCANNING → STARTED): scan one fragment, unpacking rows into the data
// file's FlowBuffer, retrying failed ScanNext calls up to retry.Scan's
// budget (every scan error is retried; errors are not classified as
// transient or permanent) and re-queuing (at 50ms) when the FlowBuffer
// can't accept a minimum batch.
func (e *Engine) BackupFragment(ctx context.Context, tableHandle models.TableHandle, fragmentIdx int) {
	e.setState(StateScanning)
	tbl := e.backup.Table(tableHandle)
	frag := &tbl.Fragments[fragmentIdx]
	frag.Scanning = true

	req := services.ScanFragRequest{
		TableID:      frag.TableID,
		FragmentID:   frag.FragmentID,
		AttrTemplate: tbl.ReadAttrTemplate,
		BatchSize:    16,
	}
	counter := retry.NewCounter(retry.Scan)
	e.scanFragment(ctx, tableHandle, fragmentIdx, req, counter, true)
}

func (e *Engine) scanFragment(ctx context.Context, tableHandle models.TableHandle, fragmentIdx int, req services.ScanFragRequest, counter *retry.Counter, writeHeader bool) {
	tbl := e.backup.Table(tableHandle)
	frag := &tbl.Fragments[fragmentIdx]
	fb := e.files.Data.FlowBuffer()

	if writeHeader {
		frame := wireformat.AppendFragmentHeader(nil, frag.TableID, frag.FragmentID)
		if !appendFrame(fb, frame) {
			e.requeueFragment(tableHandle, fragmentIdx, req, counter, true)
			return
		}
		frag.Records, frag.Bytes = 0, uint64(len(frame))
	}

	result, err := e.deps.RowStore.ScanNext(ctx, req)
	if err != nil {
		if _, exhausted := counter.Attempt(err); exhausted == nil {
			e.deps.Loop.Continue(nodeloop.Yield100ms, func() {
				e.scanFragment(ctx, tableHandle, fragmentIdx, req, counter, false)
			})
			return
		}
		frag.Scanning = false
		e.setState(StateStarted)
		e.files.Data.Record().ErrorCode = int(errs.CodeScanTransient)
		e.deps.Reply("BackupFragmentRef", errs.Wrap(errs.CodeScanTransient, "scan transient exhausted", err), nil)
		return
	}

	for _, row := range result.Rows {
		frame := wireformat.AppendRecord(nil, row.Words)
		if !appendFrame(fb, frame) {
			e.requeueFragment(tableHandle, fragmentIdx, req, counter, false)
			return
		}
		frag.Records++
		frag.Bytes += uint64(len(frame))
	}

	if !result.Complete {
		e.deps.Loop.Continue(nodeloop.YieldNone, func() {
			e.scanFragment(ctx, tableHandle, fragmentIdx, req, counter, false)
		})
		return
	}

	terminator := wireformat.AppendRecordTerminator(nil)
	footer := wireformat.AppendFragmentFooter(nil, frag.TableID, frag.FragmentID, uint32(frag.Records))
	appendFrame(fb, terminator)
	appendFrame(fb, footer)

	frag.Scanning = false
	frag.Scanned = true
	frag.Bytes += uint64(len(terminator)) + uint64(len(footer))
	e.setState(StateStarted)
	e.deps.Reply("BackupFragmentConf", nil, map[string]any{
		"tableId":    frag.TableID,
		"fragmentId": frag.FragmentID,
		"records":    uint32(frag.Records),
		"bytes":      frag.Bytes,
	})
}

func (e *Engine) requeueFragment(tableHandle models.TableHandle, fragmentIdx int, req services.ScanFragRequest, counter *retry.Counter, writeHeader bool) {
	e.setState(StateStarted)
	e.deps.Loop.Continue(nodeloop.Yield50ms, func() {
		ctx := context.Background()
		e.setState(StateScanning)
		e.scanFragment(ctx, tableHandle, fragmentIdx, req, counter, writeHeader)
	})
}

// LogEntry implements spec §4.4's trigger-firing log capture: one
// before/after row image is unpacked into a log-file entry, stamped
// with a gci-follows marker when the ambient gci advanced since the
// last entry on this backup. Returns false (and records
// LogBufferFull) if the log buffer has no room for this entry; the
// check uses this entry's own size, not a maximum entry size.
func (e *Engine) LogEntry(tableID uint32, event models.Event, fragID uint32, payload []uint32, gci *uint32) bool {
	undo := e.backup.Flags.Has(models.FlagUseUndoLog)
	frame := wireformat.AppendLogEntry(nil, tableID, wireformat.EventInsert+uint32(event), gci, fragID, payload, undo)

	fb := e.files.Log.FlowBuffer()
	if !appendFrame(fb, frame) {
		e.recordError(errs.CodeLogBufferFull, "log buffer full", nil)
		e.deps.Reply("AbortBackupOrd", e.err.Get(), nil)
		return false
	}
	e.files.Log.Record().Totals.Records++
	return true
}

// StopBackup implements spec §4.4's StopBackup (STARTED → STOPPING →
// CLEANING): write the log terminator and GCP-entry footer, emit one
// fragment-info record per fragment (locking each table for the
// duration of its own writes), close all files, then reply.
func (e *Engine) StopBackup(ctx context.Context, startGCP, stopGCP uint32) error {
	e.setState(StateStopping)

	logFB := e.files.Log.FlowBuffer()
	appendFrame(logFB, wireformat.AppendLogFileTerminator(nil))
	logFB.Eof()

	ctlFB := e.files.Ctl.FlowBuffer()
	appendFrame(ctlFB, wireformat.AppendGCPEntryFooter(nil, startGCP, stopGCP))

	for i := range e.backup.Tables {
		tbl := &e.backup.Tables[i]
		if err := e.deps.Dictionary.LockTable(ctx, tbl.TableID, true); err != nil {
			return e.stopRef(errs.Wrap(errs.CodeDictionaryError, "lock table", err))
		}
		for _, frag := range tbl.Fragments {
			appendFrame(ctlFB, wireformat.AppendFragmentInfo(nil, frag.TableID, frag.FragmentID, frag.Records))
		}
		if err := e.deps.Dictionary.LockTable(ctx, tbl.TableID, false); err != nil {
			return e.stopRef(errs.Wrap(errs.CodeDictionaryError, "unlock table", err))
		}
	}
	ctlFB.Eof()
	e.files.Data.FlowBuffer().Eof()

	e.setState(StateCleaning)
	return nil
}

func (e *Engine) stopRef(err *errs.Error) error {
	e.err.Record(err)
	e.setState(StateAborting)
	e.deps.Reply("StopBackupRef", err, nil)
	return err
}

// OnAllFilesClosed should be invoked (e.g. from each File's OnClosed
// hook, once AllClosed becomes true) to complete CLEANING → INITIAL
// and reply StopBackupConf with the final counters.
func (e *Engine) OnAllFilesClosed() {
	if e.state != StateCleaning && e.state != StateAborting {
		return
	}
	totals := models.Counters{}
	for _, f := range []interface{ Record() *models.File }{e.files.Ctl, e.files.Data} {
		totals.Add(f.Record().Totals)
	}
	logTotals := e.files.Log.Record().Totals
	totals.LogBytes += logTotals.Bytes
	totals.LogRecords += logTotals.Records
	e.backup.Counters = totals
	if e.state == StateCleaning {
		e.setState(StateInitial)
		e.deps.Reply("StopBackupConf", nil, map[string]any{
			"noOfLogBytes":   totals.LogBytes,
			"noOfLogRecords": totals.LogRecords,
		})
	} else {
		e.setState(StateInitial)
	}
}

// Abort implements spec §4.4's Abort (→ ABORTING → INITIAL): idempotent,
// drops installed triggers, and marks every file's stream eof so its
// running drain task closes it (requesting removal if an error is
// recorded). The Backup record is kept; Abort does not release it.
func (e *Engine) Abort(ctx context.Context, code errs.Code) {
	if e.state == StateAborting {
		return
	}
	e.recordError(code, "abort requested", nil)
	e.setState(StateAborting)

	if e.backup != nil {
		for i := range e.backup.Tables {
			tbl := &e.backup.Tables[i]
			if tbl.Triggers.AllAllocated() {
				for _, h := range [3]models.TriggerHandle{tbl.Triggers.Insert, tbl.Triggers.Update, tbl.Triggers.Delete} {
					_ = e.deps.Dictionary.DropTrigger(ctx, tbl.TableID, e.backup.Trigger(h).TriggerID)
				}
			}
		}
	}
	if e.files != nil {
		for _, f := range []interface{ Record() *models.File }{e.files.Ctl, e.files.Data, e.files.Log} {
			if code != errs.CodeNone && f.Record().ErrorCode == 0 {
				f.Record().ErrorCode = int(code)
			}
		}
		e.files.Ctl.FlowBuffer().Eof()
		e.files.Data.FlowBuffer().Eof()
		e.files.Log.FlowBuffer().Eof()
	}
	e.deps.Reply("AbortBackupOrd", e.err.Get(), nil)
}
