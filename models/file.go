package models

import "github.com/ndbcluster/backupcoord/wireformat"

// FileFlag is a bit in a File's lifecycle flag set (spec §4.3):
//
//	∅ → OPENING → OPENING|OPEN (on open reply) → OPEN|FILE_THREAD
//	                           → OPEN|FILE_THREAD|SCAN_THREAD (data file during scan)
//	                           → OPEN|CLOSING → ∅ (on close reply)
//
// The bitset shape follows eventloop/state.go's FastState: a small
// integer with named bits and helper predicates, rather than a single
// linear enum, since multiple bits can be set simultaneously.
type FileFlag uint32

const (
	FileFlagOpening    FileFlag = 1 << 0
	FileFlagOpen       FileFlag = 1 << 1
	FileFlagFileThread FileFlag = 1 << 2
	FileFlagScanThread FileFlag = 1 << 3
	FileFlagClosing    FileFlag = 1 << 4
)

func (f FileFlag) Has(bit FileFlag) bool { return f&bit != 0 }

func (f FileFlag) String() string {
	s := ""
	for _, b := range []struct {
		bit  FileFlag
		name string
	}{
		{FileFlagOpening, "OPENING"},
		{FileFlagOpen, "OPEN"},
		{FileFlagFileThread, "FILE_THREAD"},
		{FileFlagScanThread, "SCAN_THREAD"},
		{FileFlagClosing, "CLOSING"},
	} {
		if f.Has(b.bit) {
			if s != "" {
				s += "|"
			}
			s += b.name
		}
	}
	if s == "" {
		return "∅"
	}
	return s
}

// File is one open file within a Backup (spec §3).
type File struct {
	FileType  wireformat.FileType
	Flags     FileFlag
	ErrorCode int

	// FileSystemHandle is the opaque handle returned by the external
	// filesystem collaborator's FsOpenConf (spec §6.3).
	FileSystemHandle uint32

	// TableHandle/FragmentID identify what a data file is currently
	// writing, per spec §3 ("table/fragment currently being written, for
	// data files").
	TableHandle TableHandle
	FragmentID  uint32

	RetryCount int
	Totals     Counters

	// BufferWords is the size this file's FlowBuffer was configured
	// with (dataBufferSize/logBufferSize/small-fixed, spec §4.4).
	BufferWords int
}

// Transition applies add/remove bit deltas, matching the flag-bit
// transitions enumerated in spec §4.3. It never validates that the
// transition is one of the documented ones; FileSet's caller is
// responsible for only ever requesting valid transitions, the same
// division of responsibility eventloop's FastState.Store has relative to
// FastState.TryTransition.
func (f *File) Transition(add, remove FileFlag) {
	f.Flags = (f.Flags &^ remove) | add
}
