package models

// Flags is the Backup flag set (spec §3): wait-started, wait-completed,
// use-undo-log, multi-threaded.
type Flags uint32

const (
	FlagWaitStarted   Flags = 1 << 0
	FlagWaitCompleted Flags = 1 << 1
	FlagUseUndoLog    Flags = 1 << 2
	FlagMultiThreaded Flags = 1 << 3
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Event is a trigger's event type, as recorded on Trigger (spec §3: "0=
// insert/1=update/2=delete"). This is distinct from the on-disk
// wireformat event codes (1/2/3), which the source offsets by one; see
// wireformat.EventInsert and slave's LogEntry, which adds it.
type Event uint32

const (
	EventInsert Event = 0
	EventUpdate Event = 1
	EventDelete Event = 2
)

// Counters accumulates the byte/record totals of spec §3.
type Counters struct {
	Bytes      uint64
	Records    uint64
	LogBytes   uint64
	LogRecords uint64
}

func (c *Counters) Add(other Counters) {
	c.Bytes += other.Bytes
	c.Records += other.Records
	c.LogBytes += other.LogBytes
	c.LogRecords += other.LogRecords
}
