package models

// TableType mirrors the dictionary's object-type taxonomy (spec §4.4:
// "Online Tables/Indexes/Filegroups/Files/HashMaps/ForeignKeys").
type TableType uint32

const (
	TableTypeTable      TableType = 1
	TableTypeIndex      TableType = 2
	TableTypeFilegroup  TableType = 3
	TableTypeFile       TableType = 4
	TableTypeHashMap    TableType = 5
	TableTypeForeignKey TableType = 6
)

// IsIndexOrMeta reports whether this table type never gets CDC triggers
// (spec §3's Table invariant: "for every enrolled table that is neither
// an index nor a meta object, exactly three triggers are either
// allocated or none are").
func (t TableType) IsIndexOrMeta() bool {
	switch t {
	case TableTypeIndex, TableTypeFilegroup, TableTypeFile, TableTypeHashMap, TableTypeForeignKey:
		return true
	default:
		return false
	}
}

// TriggerSet is the three per-table CDC trigger handles (insert/update/
// delete), plus their allocation state.
type TriggerSet struct {
	Insert, Update, Delete TriggerHandle
	Allocated              [3]bool // indexed by Event
}

// AllAllocated reports whether all three triggers have been installed,
// satisfying the Table invariant of spec §3.
func (t TriggerSet) AllAllocated() bool {
	return t.Allocated[0] && t.Allocated[1] && t.Allocated[2]
}

// NoneAllocated reports the other leg of the same invariant.
func (t TriggerSet) NoneAllocated() bool {
	return !t.Allocated[0] && !t.Allocated[1] && !t.Allocated[2]
}

// Table is a table enrolled in a specific Backup (spec §3).
type Table struct {
	TableID         uint32
	TableType       TableType
	SchemaVersion   uint32
	AttributeCount  uint32
	MaxRowSize      uint32
	ReadAttrTemplate []uint32 // packed read-attribute template for the scan

	Triggers TriggerSet

	Fragments []Fragment
}
