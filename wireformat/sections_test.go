package wireformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	want := FileHeader{
		BackupVersion: 1,
		FileType:      FileTypeCtl,
		BackupID:      42,
		BackupKey0:    7,
		BackupKey1:    1234,
		NdbVersion:    80034,
		MySQLVersion:  80034,
	}
	buf := AppendFileHeader(nil, want)
	require.Equal(t, FileHeaderByteLen, len(buf))
	require.Equal(t, magic, string(buf[:8]))

	got, n, err := DecodeFileHeader(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, want, got)
}

func TestTableListRoundTrip(t *testing.T) {
	t.Parallel()

	buf := AppendTableList(nil, []uint32{1, 2, 3})
	ids, n, err := DecodeTableList(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, []uint32{1, 2, 3}, ids)
}

func TestEmptyTableListRoundTrip(t *testing.T) {
	t.Parallel()

	// spec §8: "An empty backup (zero user tables) still emits a valid
	// control file containing an empty TableList".
	buf := AppendTableList(nil, nil)
	ids, n, err := DecodeTableList(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Empty(t, ids)
}

func TestFragmentInfoRoundTrip(t *testing.T) {
	t.Parallel()

	buf := AppendFragmentInfo(nil, 5, 2, 1<<40)
	info, n, err := DecodeFragmentInfo(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, FragmentInfo{TableID: 5, FragmentNo: 2, RecordCount: 1 << 40}, info)
}

func TestGCPEntryFooterRoundTrip(t *testing.T) {
	t.Parallel()

	buf := AppendGCPEntryFooter(nil, 100, 103)
	entry, n, err := DecodeGCPEntryFooter(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, GCPEntry{StartGCP: 100, StopGCPMinus1: 102}, entry)
}

func TestLogEntryRoundTripWithAndWithoutGCI(t *testing.T) {
	t.Parallel()

	buf := AppendLogEntry(nil, 5, EventInsert, nil, 2, []uint32{10, 20}, false)
	entry, n, err := DecodeLogEntry(buf, false)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, &LogEntry{TableID: 5, Event: EventInsert, FragID: 2, Payload: []uint32{10, 20}}, entry)

	gci := uint32(77)
	buf = AppendLogEntry(nil, 5, EventDelete, &gci, 2, []uint32{10, 20}, false)
	entry, n, err = DecodeLogEntry(buf, false)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, uint32(77), *entry.GCI)
	require.Equal(t, EventDelete, entry.Event)
}

func TestLogEntryUndoModeEchoesLength(t *testing.T) {
	t.Parallel()

	buf := AppendLogEntry(nil, 5, EventUpdate, nil, 2, []uint32{1}, true)
	entry, n, err := DecodeLogEntry(buf, true)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, []uint32{1}, entry.Payload)

	// the trailing word echoes the body length, for backwards scanning.
	bodyWords := readU32(buf[0:4])
	require.Equal(t, bodyWords, readU32(buf[len(buf)-4:]))
}

func TestLogFileTerminator(t *testing.T) {
	t.Parallel()

	buf := AppendLogFileTerminator(nil)
	entry, n, err := DecodeLogEntry(buf, false)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Nil(t, entry)
}

func TestDataFileFragmentStartsWithHeaderSection(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = AppendFragmentHeader(buf, 9, 0)
	buf = AppendRecord(buf, []uint32{1, 2, 3})
	buf = AppendRecord(buf, []uint32{4})
	buf = AppendRecordTerminator(buf)
	buf = AppendFragmentFooter(buf, 9, 0, 2)

	require.Equal(t, uint32(SectionFragmentHeader), readU32(buf[0:4]))
}
