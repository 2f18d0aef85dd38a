package models

// Backup is a single in-flight job (spec §3). It exclusively owns its
// Tables, Triggers and Files; handles into those slices are invalidated
// (never dangling) once the Backup is released.
type Backup struct {
	BackupID   uint64
	BackupKey0 uint32 // owning node id
	BackupKey1 uint32 // wall-clock millisecond at start

	// ClientRef identifies who to reply to (BackupConf/BackupCompleteRep/
	// BackupAbortRep/BackupRef), opaque to this package.
	ClientRef uint64

	Flags Flags

	Nodes *NodeSet

	// MasterRef is the node currently coordinating this backup.
	MasterRef uint32

	Tables   []Table
	Triggers []Trigger
	Files    []File

	// CtlFile/DataFile/LogFile index into Files, or InvalidHandle.
	CtlFile  FileHandle
	DataFile FileHandle
	LogFile  FileHandle

	Counters Counters

	StartGCP uint32
	StopGCP  uint32
	CurrGCP  uint32

	ErrorCode int
}

// New allocates a fresh Backup record. backupKey1 is typically the
// wall-clock millisecond at creation (spec §3).
func New(backupID uint64, ownerNode uint32, backupKey1 uint32, clientRef uint64, flags Flags, nodes *NodeSet) *Backup {
	return &Backup{
		BackupID:   backupID,
		BackupKey0: ownerNode,
		BackupKey1: backupKey1,
		ClientRef:  clientRef,
		Flags:      flags,
		Nodes:      nodes,
		CtlFile:    InvalidHandle,
		DataFile:   InvalidHandle,
		LogFile:    InvalidHandle,
	}
}

// AddTable appends a Table and returns its handle.
func (b *Backup) AddTable(t Table) TableHandle {
	b.Tables = append(b.Tables, t)
	return TableHandle(len(b.Tables) - 1)
}

// Table returns a pointer to the Table at h, for in-place mutation.
func (b *Backup) Table(h TableHandle) *Table {
	return &b.Tables[h]
}

// AddTrigger appends a Trigger and returns its handle.
func (b *Backup) AddTrigger(tr Trigger) TriggerHandle {
	b.Triggers = append(b.Triggers, tr)
	return TriggerHandle(len(b.Triggers) - 1)
}

func (b *Backup) Trigger(h TriggerHandle) *Trigger {
	return &b.Triggers[h]
}

// AddFile appends a File and returns its handle.
func (b *Backup) AddFile(f File) FileHandle {
	b.Files = append(b.Files, f)
	return FileHandle(len(b.Files) - 1)
}

func (b *Backup) File(h FileHandle) *File {
	if h == InvalidHandle {
		return nil
	}
	return &b.Files[h]
}

// AllFilesClosed reports whether every File's OPEN/CLOSING/OPENING bits
// are clear, the precondition for destroying the Backup (spec §3's
// lifecycle: "destroyed after all Files have been closed").
func (b *Backup) AllFilesClosed() bool {
	for i := range b.Files {
		if b.Files[i].Flags.Has(FileFlagOpen | FileFlagOpening | FileFlagClosing) {
			return false
		}
	}
	return true
}
