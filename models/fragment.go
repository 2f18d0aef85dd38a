package models

// Fragment is one replica assignment for one fragment of one Table
// within a Backup (spec §3).
type Fragment struct {
	TableID    uint32
	FragmentID uint32
	Node       uint32 // the single node responsible for scanning this fragment
	InstanceKey uint32

	Scanned  bool
	Scanning bool

	// Records/Bytes are the per-fragment counts reported on
	// BackupFragmentConf once the scan completes (spec §4.4: "emits
	// BackupFragmentConf with per-fragment byte and record counts"),
	// and the values the control file's FragmentInfo section echoes
	// (spec §6.1).
	Records uint64
	Bytes   uint64
}

// ValidState reports the per-fragment invariant of spec §3/§8: at most
// one of {Scanned, Scanning} is true at any instant.
func (f Fragment) ValidState() bool {
	if f.Scanned && f.Scanning {
		return false
	}
	return true
}
