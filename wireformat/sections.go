package wireformat

import "fmt"

// LogEntryGCIFlag is set on a LogEntry's TriggerEvent field when a
// trailing gci word follows the header (spec §4.3/§6.1).
const LogEntryGCIFlag uint32 = 0x10000

// Trigger event codes, as recorded in the log file (spec §6.1: "event
// types 1 and 3 respectively" for insert/delete in scenario 2).
const (
	EventInsert uint32 = 1
	EventUpdate uint32 = 2
	EventDelete uint32 = 3
)

// --- control file sections ---

// AppendTableList appends the TableList section (type=2).
func AppendTableList(dst []byte, tableIDs []uint32) []byte {
	dst = appendU32(dst, uint32(SectionTableList))
	dst = appendU32(dst, uint32(len(tableIDs)))
	for _, id := range tableIDs {
		dst = appendU32(dst, id)
	}
	return dst
}

// DecodeTableList parses a TableList section from the start of src.
func DecodeTableList(src []byte) (tableIDs []uint32, n int, err error) {
	typ, length, body, err := readSection(src)
	if err != nil {
		return nil, 0, err
	}
	if SectionType(typ) != SectionTableList {
		return nil, 0, fmt.Errorf("wireformat: expected TableList section, got %d", typ)
	}
	tableIDs = make([]uint32, length)
	for i := range tableIDs {
		tableIDs[i] = readU32(body[i*4 : i*4+4])
	}
	return tableIDs, 8 + int(length)*4, nil
}

// AppendTableDescription appends a TableDescription section (type=3);
// opaque is the dictionary's serialised table descriptor, padded to a
// word boundary with zero bytes.
func AppendTableDescription(dst []byte, tableType uint32, opaque []byte) []byte {
	padded := (len(opaque) + 3) / 4 * 4
	dst = appendU32(dst, uint32(SectionTableDescription))
	dst = appendU32(dst, uint32(1+padded/4))
	dst = appendU32(dst, tableType)
	dst = append(dst, opaque...)
	for i := len(opaque); i < padded; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// AppendFragmentInfo appends a FragmentInfo section (type=4).
func AppendFragmentInfo(dst []byte, tableID, fragmentNo uint32, recordCount uint64) []byte {
	dst = appendU32(dst, uint32(SectionFragmentInfo))
	dst = appendU32(dst, 6)
	dst = appendU32(dst, tableID)
	dst = appendU32(dst, fragmentNo)
	dst = appendU32(dst, uint32(recordCount))
	dst = appendU32(dst, uint32(recordCount>>32))
	dst = appendU32(dst, 0) // filePosLo
	dst = appendU32(dst, 0) // filePosHi
	return dst
}

// FragmentInfo is the decoded form of a FragmentInfo section.
type FragmentInfo struct {
	TableID     uint32
	FragmentNo  uint32
	RecordCount uint64
}

// DecodeFragmentInfo parses a FragmentInfo section from the start of src.
func DecodeFragmentInfo(src []byte) (FragmentInfo, int, error) {
	typ, length, body, err := readSection(src)
	if err != nil {
		return FragmentInfo{}, 0, err
	}
	if SectionType(typ) != SectionFragmentInfo || length != 6 {
		return FragmentInfo{}, 0, fmt.Errorf("wireformat: bad FragmentInfo section type=%d length=%d", typ, length)
	}
	info := FragmentInfo{
		TableID:    readU32(body[0:4]),
		FragmentNo: readU32(body[4:8]),
		RecordCount: uint64(readU32(body[8:12])) |
			uint64(readU32(body[12:16]))<<32,
	}
	return info, 8 + int(length)*4, nil
}

// AppendGCPEntryFooter appends the control file's GCPEntry footer
// (type=5): {startGCP, stopGCP-1}.
func AppendGCPEntryFooter(dst []byte, startGCP, stopGCP uint32) []byte {
	dst = appendU32(dst, uint32(SectionGCPEntry))
	dst = appendU32(dst, 2)
	dst = appendU32(dst, startGCP)
	dst = appendU32(dst, stopGCP-1)
	return dst
}

// GCPEntry is the decoded form of the GCPEntry footer.
type GCPEntry struct {
	StartGCP      uint32
	StopGCPMinus1 uint32
}

// DecodeGCPEntryFooter parses the GCPEntry footer from the start of src.
func DecodeGCPEntryFooter(src []byte) (GCPEntry, int, error) {
	typ, length, body, err := readSection(src)
	if err != nil {
		return GCPEntry{}, 0, err
	}
	if SectionType(typ) != SectionGCPEntry || length != 2 {
		return GCPEntry{}, 0, fmt.Errorf("wireformat: bad GCPEntry section type=%d length=%d", typ, length)
	}
	return GCPEntry{
		StartGCP:      readU32(body[0:4]),
		StopGCPMinus1: readU32(body[4:8]),
	}, 8 + int(length)*4, nil
}

// --- data file sections ---

// AppendFragmentHeader appends a data-file FragmentHeader (type=6).
func AppendFragmentHeader(dst []byte, tableID, fragmentNo uint32) []byte {
	dst = appendU32(dst, uint32(SectionFragmentHeader))
	dst = appendU32(dst, 3)
	dst = appendU32(dst, tableID)
	dst = appendU32(dst, fragmentNo)
	dst = appendU32(dst, 0) // checksumType
	return dst
}

// AppendRecord appends a single scanned row, prefixed with its length in
// words.
func AppendRecord(dst []byte, words []uint32) []byte {
	dst = appendU32(dst, uint32(len(words)))
	for _, w := range words {
		dst = appendU32(dst, w)
	}
	return dst
}

// AppendRecordTerminator appends the zero-word terminator that ends a
// fragment's record stream.
func AppendRecordTerminator(dst []byte) []byte {
	return appendU32(dst, 0)
}

// AppendFragmentFooter appends a data-file FragmentFooter (type=7).
func AppendFragmentFooter(dst []byte, tableID, fragmentNo, recordCount uint32) []byte {
	dst = appendU32(dst, uint32(SectionFragmentFooter))
	dst = appendU32(dst, 4)
	dst = appendU32(dst, tableID)
	dst = appendU32(dst, fragmentNo)
	dst = appendU32(dst, recordCount)
	dst = appendU32(dst, 0) // checksum
	return dst
}

// --- log file entries ---

// AppendLogEntry appends one LogEntry. gci is non-nil when the ambient
// gci has advanced since the last entry on this backup (spec §4.4), in
// which case LogEntryGCIFlag is stamped on event and a trailing gci word
// is appended. In undo mode, the entry's length is echoed at the tail so
// the file can be scanned backwards (spec §4.3).
func AppendLogEntry(dst []byte, tableID uint32, event uint32, gci *uint32, fragID uint32, payload []uint32, undo bool) []byte {
	bodyWords := 3 + len(payload)
	if gci != nil {
		bodyWords++
		event |= LogEntryGCIFlag
	}
	dst = appendU32(dst, uint32(bodyWords))
	dst = appendU32(dst, tableID)
	dst = appendU32(dst, event)
	if gci != nil {
		dst = appendU32(dst, *gci)
	}
	dst = appendU32(dst, fragID)
	for _, w := range payload {
		dst = appendU32(dst, w)
	}
	if undo {
		dst = appendU32(dst, uint32(bodyWords))
	}
	return dst
}

// AppendLogFileTerminator appends the zero-length entry that ends a log
// file.
func AppendLogFileTerminator(dst []byte) []byte {
	return appendU32(dst, 0)
}

// LogEntry is the decoded form of one log-file entry.
type LogEntry struct {
	TableID uint32
	Event   uint32 // with LogEntryGCIFlag cleared
	GCI     *uint32
	FragID  uint32
	Payload []uint32
}

// DecodeLogEntry parses one LogEntry from the start of src. undo must
// match the mode the entry was written with, since that determines
// whether a trailing length echo must be skipped. A zero body length
// (the terminator) returns a nil entry and n=4.
func DecodeLogEntry(src []byte, undo bool) (entry *LogEntry, n int, err error) {
	if len(src) < 4 {
		return nil, 0, fmt.Errorf("wireformat: short log entry")
	}
	bodyWords := readU32(src[0:4])
	if bodyWords == 0 {
		return nil, 4, nil
	}
	need := 4 + int(bodyWords)*4
	if undo {
		need += 4
	}
	if len(src) < need {
		return nil, 0, fmt.Errorf("wireformat: short log entry body: have %d, need %d", len(src), need)
	}
	off := 4
	tableID := readU32(src[off : off+4])
	off += 4
	event := readU32(src[off : off+4])
	off += 4
	remaining := int(bodyWords) - 2

	var gci *uint32
	if event&LogEntryGCIFlag != 0 {
		g := readU32(src[off : off+4])
		gci = &g
		off += 4
		remaining--
	}

	fragID := readU32(src[off : off+4])
	off += 4
	remaining--

	payload := make([]uint32, remaining)
	for i := range payload {
		payload[i] = readU32(src[off : off+4])
		off += 4
	}

	entry = &LogEntry{
		TableID: tableID,
		Event:   event &^ LogEntryGCIFlag,
		GCI:     gci,
		FragID:  fragID,
		Payload: payload,
	}
	return entry, need, nil
}

func readSection(src []byte) (typ, length uint32, body []byte, err error) {
	if len(src) < 8 {
		return 0, 0, nil, fmt.Errorf("wireformat: short section header")
	}
	typ = readU32(src[0:4])
	length = readU32(src[4:8])
	need := 8 + int(length)*4
	if len(src) < need {
		return 0, 0, nil, fmt.Errorf("wireformat: short section body: have %d, need %d", len(src), need)
	}
	return typ, length, src[8:need], nil
}
