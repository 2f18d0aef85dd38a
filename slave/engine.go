package slave

import (
	"context"
	"fmt"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/fileset"
	"github.com/ndbcluster/backupcoord/internal/obslog"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/retry"
	"github.com/ndbcluster/backupcoord/services"
	"github.com/ndbcluster/backupcoord/wireformat"
)

// Deps are the collaborators one Engine needs (spec §6.3), plus the
// node-local scheduler and configuration.
type Deps struct {
	Dictionary   services.Dictionary
	Distribution services.Distribution
	RowStore     services.RowStore
	FileSystem   services.FileSystem
	// FileDeps carries the filesystem/governor/loop wiring shared by
	// every File this engine opens; OnError is overridden by the engine
	// itself, OnClosed is passed through as given.
	FileDeps fileset.Deps
	Loop     *nodeloop.Loop
	Config   *config.Config
	Log      *obslog.Logger

	// Reply is how the engine talks back to the master: (kind, err,
	// fields). Kind values are the message names of spec §4.4
	// (DefineBackupConf/Ref, StartBackupConf, BackupFragmentConf/Ref,
	// StopBackupConf, AbortBackupOrd). It stands in for the signalling
	// bus spec §1 places out of scope.
	Reply func(kind string, err *errs.Error, fields map[string]any)
}

// Engine is one node's participation in one Backup (spec §4.4: "Each
// participating node runs one SlaveEngine instance per active Backup").
type Engine struct {
	deps Deps

	state   State
	backup  *models.Backup
	files   *fileset.Set
	err     errs.First
	nodeID  uint32

	scanRetry *retry.Counter
}

// New constructs an Engine in its INITIAL state.
func New(nodeID uint32, deps Deps) *Engine {
	return &Engine{deps: deps, state: StateInitial, nodeID: nodeID}
}

func (e *Engine) State() State { return e.state }

// setState enforces the table-driven transition allow-list; an
// illegal transition is a programming-invariant violation, so it
// panics rather than returning an error (spec §4.4: "an illegal
// transition is fatal").
func (e *Engine) setState(to State) {
	if !canTransition(e.state, to) {
		panic(fmt.Sprintf("slave: illegal transition %s -> %s", e.state, to))
	}
	e.state = to
}

// Failover forces the state to the takeover target for a newly
// promoted master (spec §4.5, point 2).
func (e *Engine) Failover() {
	e.state = failoverTarget(e.state)
}

func (e *Engine) recordError(code errs.Code, message string, cause error) *errs.Error {
	err := errs.Wrap(code, message, cause)
	e.err.Record(err)
	return err
}

// DefineBackup implements spec §4.4's DefineBackup (DEFINING →
// DEFINED): allocate the Backup/File/Table/Fragment records, open the
// FileSet, enumerate tables, write descriptors, and populate fragment
// placement.
func (e *Engine) DefineBackup(ctx context.Context, backupID uint64, backupKey1 uint32, clientRef uint64, flags models.Flags, nodes *models.NodeSet, masterRef uint32, undoLog bool) error {
	e.setState(StateDefining)

	e.backup = models.New(backupID, masterRef, backupKey1, clientRef, flags, nodes)
	e.backup.MasterRef = masterRef

	fsDeps := e.deps.FileDeps
	fsDeps.OnError = func(err error) { e.abortFromFileError(err) }

	files, err := fileset.OpenSet(ctx, backupID, e.backup.BackupKey0, e.backup.BackupKey1, e.nodeID, e.deps.Config, fsDeps, undoLog)
	if err != nil {
		return e.defineRef(errs.Wrap(errs.CodeOutOfFileRecords, "open fileset", err))
	}
	e.files = files

	tables, err := e.deps.Dictionary.ListTables(ctx)
	if err != nil {
		return e.defineRef(errs.Wrap(errs.CodeDictionaryError, "list tables", err))
	}

	var enrolled []services.TableMeta
	for _, t := range tables {
		if !t.Online {
			continue
		}
		if models.TableType(t.TableType).IsIndexOrMeta() {
			continue
		}
		enrolled = append(enrolled, t)
	}

	// TableList must precede every TableDescription in the control file
	// body (spec §6.1), so the full enrolled-table id list is written
	// once, up front, before any per-table work.
	tableIDs := make([]uint32, len(enrolled))
	for i, t := range enrolled {
		tableIDs[i] = t.TableID
	}
	if !appendFrame(e.files.Ctl.FlowBuffer(), wireformat.AppendTableList(nil, tableIDs)) {
		return e.defineRef(errs.New(errs.CodeTableListTooSmall, "control-file buffer too small for table list"))
	}

	for _, t := range enrolled {
		tt := models.TableType(t.TableType)
		h := e.backup.AddTable(models.Table{TableID: t.TableID, TableType: tt})

		desc, err := e.deps.Dictionary.GetTabInfo(ctx, t.TableID)
		if err != nil {
			return e.defineRef(errs.Wrap(errs.CodeDictionaryError, "get tab info", err))
		}
		if err := e.writeTableDescriptor(tt, desc); err != nil {
			return e.defineRef(errs.Wrap(errs.CodeTableListTooSmall, "write table descriptor", err))
		}

		fragCount, err := e.deps.Distribution.ScanTab(ctx, t.TableID)
		if err != nil {
			return e.defineRef(errs.Wrap(errs.CodeDistributionError, "scan tab", err))
		}
		tbl := e.backup.Table(h)
		tbl.Fragments = make([]models.Fragment, 0, fragCount)
		for fragID := uint32(0); fragID < fragCount; fragID++ {
			node, instanceKey, err := e.deps.Distribution.ScanGetNodes(ctx, t.TableID, fragID)
			if err != nil {
				return e.defineRef(errs.Wrap(errs.CodeDistributionError, "scan get nodes", err))
			}
			tbl.Fragments = append(tbl.Fragments, models.Fragment{
				TableID:     t.TableID,
				FragmentID:  fragID,
				Node:        node,
				InstanceKey: instanceKey,
			})
		}
		if err := e.deps.Distribution.ScanTabComplete(ctx, t.TableID); err != nil {
			return e.defineRef(errs.Wrap(errs.CodeDistributionError, "scan tab complete", err))
		}
	}

	e.setState(StateDefined)
	e.deps.Reply("DefineBackupConf", nil, map[string]any{"backupId": backupID})
	return nil
}

func (e *Engine) defineRef(err *errs.Error) error {
	e.err.Record(err)
	e.setState(StateAborting)
	e.deps.Reply("DefineBackupRef", err, nil)
	return err
}

// writeTableDescriptor appends a TableDescription section (spec §6.1:
// "{type=3, length, tableType, opaque-bytes...}") for one enrolled
// table, carrying the dictionary's own serialised descriptor verbatim.
func (e *Engine) writeTableDescriptor(tt models.TableType, desc []byte) error {
	frame := wireformat.AppendTableDescription(nil, uint32(tt), desc)
	if !appendFrame(e.files.Ctl.FlowBuffer(), frame) {
		return fmt.Errorf("slave: control-file buffer full")
	}
	return nil
}

func (e *Engine) abortFromFileError(cause error) {
	if e.state == StateAborting {
		return
	}
	e.recordError(errs.CodeFileSystemError, "file-system error", cause)
	e.setState(StateAborting)
	e.deps.Reply("AbortBackupOrd", e.err.Get(), nil)
}
