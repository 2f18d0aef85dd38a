package models

// Trigger is one (event-type, table) CDC subscription, owned by one
// Backup on the node where it fires (spec §3). The Table reference is
// weak: a table index plus a tableID sanity check, never a pointer, per
// spec §9's design note on re-modelling the source's cyclic pointer
// graphs as handles.
type Trigger struct {
	TableHandle TableHandle
	TableID     uint32 // sanity check against the referenced Table
	Event       Event

	// TriggerID is the row-store's own handle for this installed
	// trigger, returned by CreateTrigImpl and echoed back on DropTrigImpl.
	TriggerID uint32

	// InProgress is the length-prefix offset (within the log file's
	// FlowBuffer write window) of the entry currently being assembled by
	// this trigger's firing, or -1 if none is in progress.
	InProgress int

	ErrorCode int
}
