package master

import (
	"context"

	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/models"
)

// AbortReason is the AbortBackupOrd payload of spec §4.4/§4.5.
type AbortReason uint32

const (
	AbortReasonScan           AbortReason = iota // AbortScan: abort the active fragment scan only
	AbortReasonBackupFailure                     // masterAbort's terminal broadcast
	AbortReasonBackupComplete                     // normal completion broadcast
)

// DefineBackupRequest is the DefineBackupReq fan-out payload.
type DefineBackupRequest struct {
	BackupID   uint64
	BackupKey1 uint32
	ClientRef  uint64
	Flags      models.Flags
	Nodes      *models.NodeSet
	MasterRef  uint32
	UndoLog    bool
}

// DefineBackupReply, StartBackupReply, BackupFragmentReply and
// StopBackupReply are the per-participant replies MasterEngine gathers
// once per phase (spec §5: "the master does not progress to the next
// phase until every expected reply is in").
type DefineBackupReply struct {
	NodeID uint32
	Err    *errs.Error
}

type StartBackupReply struct {
	NodeID uint32
	Err    *errs.Error
}

type BackupFragmentReply struct {
	NodeID     uint32
	TableID    uint32
	FragmentID uint32
	Records    uint64
	Bytes      uint64
	Err        *errs.Error
}

type StopBackupReply struct {
	NodeID     uint32
	LogBytes   uint64
	LogRecords uint64
	Err        *errs.Error
}

// Transport is the inter-node signalling bus spec §1 places out of
// scope as an external collaborator ("accessed only through the
// interfaces of §6"); MasterEngine only ever talks to participants
// through it, executing direct against the local node (spec §4.5's
// "Signal self-loops" note) being the transport's own responsibility,
// not MasterEngine's.
type Transport interface {
	DefineBackup(ctx context.Context, nodeID uint32, req DefineBackupRequest) <-chan DefineBackupReply
	StartBackup(ctx context.Context, nodeID uint32) <-chan StartBackupReply
	BackupFragment(ctx context.Context, nodeID, tableID, fragmentID uint32) <-chan BackupFragmentReply
	StopBackup(ctx context.Context, nodeID uint32, startGCP, stopGCP uint32) <-chan StopBackupReply
	AbortOrd(ctx context.Context, nodeID uint32, reason AbortReason)

	// FragmentComplete delivers one informational BackupFragmentCompleteRep
	// (spec §4.5's fragment scheduling: "so their local totals can be
	// displayed"). It carries no reply — unlike the phase requests above,
	// nothing waits on it.
	FragmentComplete(ctx context.Context, nodeID, tableID, fragmentID uint32, records uint64)
}
