package services

import "context"

// WaitGCPMode selects the distribution service's WaitGcp semantics
// (spec §6.3); CompleteForceStart is the only mode the backup core uses.
type WaitGCPMode uint32

const CompleteForceStart WaitGCPMode = 1

// Sequence is the cluster-wide monotonic sequence service (spec §6.3).
type Sequence interface {
	NextVal(ctx context.Context, sequenceID uint32) (uint64, error)
}

// Mutex is the cluster mutex service (spec §6.3): backup-define and
// dict-commit-table are the two mutex ids the master acquires.
type Mutex interface {
	Lock(ctx context.Context, mutexID uint32) error
	Unlock(ctx context.Context, mutexID uint32) error
}

// TableMeta is one entry from the dictionary's ListTables reply.
type TableMeta struct {
	TableID   uint32
	TableType uint32 // dictionary's own object-type code, see models.TableType
	Online    bool
}

// TriggerEventType mirrors the row-store's CreateTrigImpl trigger-type
// parameter (spec §4.4: "subscription" or "subscription-before").
type TriggerEventType uint32

const (
	TriggerSubscription       TriggerEventType = 1
	TriggerSubscriptionBefore TriggerEventType = 2
)

// CreateTriggerRequest carries the fields spec §4.4 says every installed
// trigger is configured with.
type CreateTriggerRequest struct {
	TableID           uint32
	Event             uint32 // 0=insert/1=update/2=delete
	Type              TriggerEventType
	DetachedActionTime bool
	MonitorReplicas    bool
	MonitorAllAttributes bool
	AttributeMask      []uint32
}

// Dictionary resolves table metadata and installs/removes triggers
// (spec §6.3).
type Dictionary interface {
	ListTables(ctx context.Context) ([]TableMeta, error)
	GetTabInfo(ctx context.Context, tableID uint32) ([]byte, error)
	CreateTrigger(ctx context.Context, req CreateTriggerRequest) (triggerID uint32, err error)
	DropTrigger(ctx context.Context, tableID, triggerID uint32) error
	// LockTable implements BackupLockTab: locking serialises schema
	// changes against one table's worth of control-file writes (spec
	// §4.4's StopBackup).
	LockTable(ctx context.Context, tableID uint32, lock bool) error
}

// Distribution enumerates fragment-to-node placement and serves GCP
// barrier waits (spec §6.3).
type Distribution interface {
	ScanTab(ctx context.Context, tableID uint32) (fragmentCount uint32, err error)
	ScanGetNodes(ctx context.Context, tableID, fragmentID uint32) (node, instanceKey uint32, err error)
	ScanTabComplete(ctx context.Context, tableID uint32) error
	WaitGCP(ctx context.Context, mode WaitGCPMode) (gci uint32, err error)
}

// RowSegment is one unpacked row (or trigger-fired before/after image)
// returned by the row store.
type RowSegment struct {
	Words []uint32
}

// ScanFragRequest mirrors ScanFragReq (spec §6.3): batch-size 16,
// tup-scan order, read-committed, no disk data.
type ScanFragRequest struct {
	TableID      uint32
	FragmentID   uint32
	AttrTemplate []uint32
	BatchSize    uint32
}

// ScanResult is delivered once per batch from a fragment scan.
type ScanResult struct {
	Rows     []RowSegment
	Complete bool // true once the fragment has been fully scanned
}

// RowStore executes fragment scans and fires CDC triggers (spec §6.3).
// Scan is synchronous-from-the-caller's-perspective: ScanNext is
// called once per ScanNextReq round-trip, matching the
// cooperative, run-to-completion handler model of spec §5 — the loop
// that calls it is responsible for yielding between rounds.
type RowStore interface {
	ScanNext(ctx context.Context, req ScanFragRequest) (ScanResult, error)
}

// FileSpec names a backup file (spec §6.1's (backupId, nodeId, suffix)
// tuple) and its open flags.
type FileSpec struct {
	BackupID    uint64
	NodeID      uint32
	Suffix      string // "ctl" | "data" | "log"
	Compressed  bool
	ODirect     bool
	DiskSyncSize uint32
}

// FileSystem is the async open/append/close/remove collaborator (spec
// §6.3).
type FileSystem interface {
	Open(ctx context.Context, spec FileSpec) (handle uint32, err error)
	Append(ctx context.Context, handle uint32, data []byte) error
	Close(ctx context.Context, handle uint32, removeOnClose bool) error
	Remove(ctx context.Context, handle uint32) error
}
