package fakesvc

import (
	"context"
	"sync"

	"github.com/ndbcluster/backupcoord/master"
)

// Transport is an in-memory master.Transport: every call is answered
// immediately (successfully, unless FailNode marks the target node
// down) on a buffered channel, so master.Engine's fan-out/gather logic
// can be exercised without a real signalling bus.
type Transport struct {
	mu   sync.Mutex
	down map[uint32]bool

	// downFrag marks a single (tableID,fragmentID) as never-replying,
	// modelling a node that dies mid-scan without affecting its replies
	// to any other phase.
	downFrag map[[2]uint32]bool

	// FragmentRecords, keyed by (tableID,fragmentID) whichever node owns
	// it, serves the recordCount of each BackupFragment call; fragments
	// not listed get a zero-record, immediate Conf.
	FragmentRecords map[[2]uint32]uint64
	// FragmentBytes mirrors FragmentRecords for the byte counter;
	// entries not listed default to zero.
	FragmentBytes map[[2]uint32]uint64

	completes []fragCompleteCall
}

type fragCompleteCall struct {
	NodeID, TableID, FragmentID uint32
	Records                     uint64
}

func NewTransport() *Transport {
	return &Transport{
		down:            make(map[uint32]bool),
		downFrag:        make(map[[2]uint32]bool),
		FragmentRecords: make(map[[2]uint32]uint64),
		FragmentBytes:   make(map[[2]uint32]uint64),
	}
}

// FailNode causes every subsequent call targeting nodeID to hang
// forever (modelling a dead node whose reply never arrives — tests
// drive completion via master.Engine.HandleNodeFailure's synthetic
// injection instead, exactly as spec §4.5 point 3 describes).
func (t *Transport) FailNode(nodeID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.down[nodeID] = true
}

// FailFragment causes BackupFragment(tableID, fragmentID) to hang
// forever regardless of which node owns it, without affecting that
// node's replies to any other phase.
func (t *Transport) FailFragment(tableID, fragmentID uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.downFrag[[2]uint32{tableID, fragmentID}] = true
}

func (t *Transport) isFragDown(tableID, fragmentID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.downFrag[[2]uint32{tableID, fragmentID}]
}

func (t *Transport) isDown(nodeID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.down[nodeID]
}

func (t *Transport) DefineBackup(ctx context.Context, nodeID uint32, req master.DefineBackupRequest) <-chan master.DefineBackupReply {
	ch := make(chan master.DefineBackupReply, 1)
	if !t.isDown(nodeID) {
		ch <- master.DefineBackupReply{NodeID: nodeID}
	}
	return ch
}

func (t *Transport) StartBackup(ctx context.Context, nodeID uint32) <-chan master.StartBackupReply {
	ch := make(chan master.StartBackupReply, 1)
	if !t.isDown(nodeID) {
		ch <- master.StartBackupReply{NodeID: nodeID}
	}
	return ch
}

func (t *Transport) BackupFragment(ctx context.Context, nodeID, tableID, fragmentID uint32) <-chan master.BackupFragmentReply {
	ch := make(chan master.BackupFragmentReply, 1)
	if !t.isDown(nodeID) && !t.isFragDown(tableID, fragmentID) {
		t.mu.Lock()
		records := t.FragmentRecords[[2]uint32{tableID, fragmentID}]
		bytes := t.FragmentBytes[[2]uint32{tableID, fragmentID}]
		t.mu.Unlock()
		ch <- master.BackupFragmentReply{NodeID: nodeID, TableID: tableID, FragmentID: fragmentID, Records: records, Bytes: bytes}
	}
	return ch
}

func (t *Transport) StopBackup(ctx context.Context, nodeID uint32, startGCP, stopGCP uint32) <-chan master.StopBackupReply {
	ch := make(chan master.StopBackupReply, 1)
	if !t.isDown(nodeID) {
		ch <- master.StopBackupReply{NodeID: nodeID, LogBytes: 128, LogRecords: 4}
	}
	return ch
}

func (t *Transport) AbortOrd(ctx context.Context, nodeID uint32, reason master.AbortReason) {}

func (t *Transport) FragmentComplete(ctx context.Context, nodeID, tableID, fragmentID uint32, records uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completes = append(t.completes, fragCompleteCall{NodeID: nodeID, TableID: tableID, FragmentID: fragmentID, Records: records})
}

// Completes returns every FragmentComplete call observed so far, for
// assertions.
func (t *Transport) Completes() []fragCompleteCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]fragCompleteCall(nil), t.completes...)
}
