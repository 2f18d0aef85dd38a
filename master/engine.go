package master

import (
	"context"
	"fmt"
	"sort"

	"github.com/joeycumines/go-microbatch"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/internal/obslog"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/retry"
	"github.com/ndbcluster/backupcoord/services"
)

// The two cluster mutexes MasterEngine acquires in order (spec §4.5):
// backup-define serialises concurrent backup starts cluster-wide,
// dict-commit-table prevents schema changes racing a starting backup.
const (
	MutexBackupDefine    = 1
	MutexDictCommitTable = 2

	// sequenceID identifies the cluster-wide 64-bit backup-id sequence.
	sequenceID = 1
)

// Deps are the collaborators one Engine needs: the sequence/mutex/
// dictionary/distribution services of spec §6.3 (used here for identity
// allocation, mutual exclusion, and building the global fragment
// schedule), the Transport fan-out bus, and the node-local scheduler.
type Deps struct {
	Sequence     services.Sequence
	Mutex        services.Mutex
	Dictionary   services.Dictionary
	Distribution services.Distribution
	Transport    Transport
	Loop         *nodeloop.Loop
	Config       *config.Config
	Log          *obslog.Logger

	// LocalNodeID is this node's own id — the master always executes its
	// own DefineBackup etc. direct rather than through Transport (spec
	// §4.5's "Signal self-loops" note), but that substitution is the
	// Transport implementation's responsibility, not Engine's; Engine only
	// needs to know which reply belongs to itself for the "new master is
	// self" check in node-failure handling.
	LocalNodeID uint32

	// Reply delivers BackupRef/BackupConf/BackupCompleteRep/BackupAbortRep
	// back to the requesting client (spec §4.5, §6.2), standing in for the
	// signalling bus spec §1 places out of scope.
	Reply func(kind string, err *errs.Error, fields map[string]any)
}

// fragmentState is one (table,fragment) slot in the global schedule
// MasterEngine walks during the BackupFragmentReq phase.
type fragmentState struct {
	tableID, fragmentID, node uint32
	scanning, scanned         bool
}

// Engine is the coordinator elected on one node for one Backup (spec
// §4.5). Exactly one Engine exists per in-progress backup.
type Engine struct {
	deps Deps

	phase MasterPhase

	backupID   uint64
	backupKey1 uint32
	clientRef  uint64
	flags      models.Flags
	nodes      *models.NodeSet
	masterRef  uint32

	fragments []fragmentState
	busy      map[uint32]bool
	outFrags  int // fragments currently dispatched and not yet replied

	startGCP, stopGCP uint32

	// records/bytes are the running master-side sums of each fragment's
	// BackupFragmentConf counters (spec §8: "A backup's noOfRecords
	// (master sum) equals the sum over fragments of
	// BackupFragmentConf.noOfRecords").
	records, bytes       uint64
	logBytes, logRecords uint64

	err         errs.First
	aborting    bool
	mutexesHeld bool

	seqRetry *retry.Counter

	// currentInject, when non-nil, lets node-failure handling complete
	// the in-flight fan-in counter for whichever phase is currently
	// gathering replies (spec §4.5, point 3: "inject synthetic ...Ref
	// messages to self from each dead node").
	currentInject func(nodeID uint32)

	completeBatcher *microbatch.Batcher[fragCompleteJob]
}

// New constructs an Engine that has not yet been given a backup.
func New(deps Deps) *Engine {
	return &Engine{deps: deps, phase: PhaseNone, busy: make(map[uint32]bool), masterRef: deps.LocalNodeID}
}

func (e *Engine) Phase() MasterPhase { return e.phase }

// BackupID returns the allocated (or seized) backup id, valid once the
// sequence/seizure step has completed.
func (e *Engine) BackupID() uint64 { return e.backupID }

// Close releases the fragment-completion batcher. Safe to call once the
// backup has finished or aborted.
func (e *Engine) Close(ctx context.Context) error {
	if e.completeBatcher == nil {
		return nil
	}
	return e.completeBatcher.Shutdown(ctx)
}

func (e *Engine) recordError(code errs.Code, message string, cause error) *errs.Error {
	err := errs.Wrap(code, message, cause)
	e.err.Record(err)
	return err
}

// BackupReq implements spec §4.5's top-level entry point: acquire a
// fresh backup id (unless the caller seizes a specific one, spec
// SPEC_FULL.md §4's "Backup record seizure modes"), lock the two
// cluster mutexes in order, enumerate the global fragment schedule, and
// fan out DefineBackupReq.
func (e *Engine) BackupReq(ctx context.Context, clientRef uint64, backupKey1 uint32, flags models.Flags, nodes *models.NodeSet, seizeBackupID *uint64) {
	e.clientRef = clientRef
	e.backupKey1 = backupKey1
	e.flags = flags
	e.nodes = nodes

	if seizeBackupID != nil {
		e.backupID = *seizeBackupID
		e.afterSequence(ctx)
		return
	}

	e.phase = PhaseSequence
	e.seqRetry = retry.NewCounter(retry.Sequence)
	e.requestSequence(ctx)
}

func (e *Engine) requestSequence(ctx context.Context) {
	if e.aborting {
		return
	}
	id, err := e.deps.Sequence.NextVal(ctx, sequenceID)
	if err != nil {
		if _, exhausted := e.seqRetry.Attempt(err); exhausted == nil {
			e.deps.Loop.Continue(nodeloop.Yield300ms, func() { e.requestSequence(ctx) })
			return
		}
		e.backupRef(errs.Wrap(errs.CodeSequenceFailure, "sequence exhausted", err))
		return
	}
	e.backupID = id
	e.afterSequence(ctx)
}

func (e *Engine) backupRef(err *errs.Error) {
	e.err.Record(err)
	e.deps.Reply("BackupRef", err, nil)
}

func (e *Engine) afterSequence(ctx context.Context) {
	if e.aborting {
		return
	}
	e.phase = PhaseMutexBackupDefine
	if err := e.deps.Mutex.Lock(ctx, MutexBackupDefine); err != nil {
		e.backupRef(errs.Wrap(errs.CodeSequenceFailure, "lock backup-define mutex", err))
		return
	}
	e.phase = PhaseMutexDictCommit
	if err := e.deps.Mutex.Lock(ctx, MutexDictCommitTable); err != nil {
		_ = e.deps.Mutex.Unlock(ctx, MutexBackupDefine)
		e.backupRef(errs.Wrap(errs.CodeSequenceFailure, "lock dict-commit-table mutex", err))
		return
	}

	e.mutexesHeld = true

	if err := e.buildFragmentSchedule(ctx); err != nil {
		e.releaseMutexes(ctx)
		e.backupRef(errs.Wrap(errs.CodeDistributionError, "build fragment schedule", err))
		return
	}

	e.completeBatcher = newCompleteBatcher(func(jobs []fragCompleteJob) { e.broadcastFragmentComplete(ctx, jobs) })
	e.dispatchDefineBackup(ctx)
}

// releaseMutexes unlocks both cluster mutexes, held from sequence-conf
// to define-conf or masterAbort (spec §5's shared-resource note).
func (e *Engine) releaseMutexes(ctx context.Context) {
	if !e.mutexesHeld {
		return
	}
	e.mutexesHeld = false
	_ = e.deps.Mutex.Unlock(ctx, MutexDictCommitTable)
	_ = e.deps.Mutex.Unlock(ctx, MutexBackupDefine)
}

// buildFragmentSchedule enumerates every online, non-index/meta table and
// its fragments (spec §4.5's fragment scheduling precondition), visited
// in (tableId, fragmentId) order (spec §4.5: "fragments are visited in
// (tableId, fragmentId) order").
func (e *Engine) buildFragmentSchedule(ctx context.Context) error {
	tables, err := e.deps.Dictionary.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("master: list tables: %w", err)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].TableID < tables[j].TableID })

	e.fragments = e.fragments[:0]
	for _, t := range tables {
		if !t.Online {
			continue
		}
		if models.TableType(t.TableType).IsIndexOrMeta() {
			continue
		}
		fragCount, err := e.deps.Distribution.ScanTab(ctx, t.TableID)
		if err != nil {
			return fmt.Errorf("master: scan tab %d: %w", t.TableID, err)
		}
		for fragID := uint32(0); fragID < fragCount; fragID++ {
			node, _, err := e.deps.Distribution.ScanGetNodes(ctx, t.TableID, fragID)
			if err != nil {
				return fmt.Errorf("master: scan get nodes %d/%d: %w", t.TableID, fragID, err)
			}
			e.fragments = append(e.fragments, fragmentState{tableID: t.TableID, fragmentID: fragID, node: node})
		}
		if err := e.deps.Distribution.ScanTabComplete(ctx, t.TableID); err != nil {
			return fmt.Errorf("master: scan tab complete %d: %w", t.TableID, err)
		}
	}
	return nil
}
