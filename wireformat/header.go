package wireformat

import (
	"encoding/binary"
	"fmt"
)

// FileType identifies the kind of on-disk backup file (spec §6.1).
type FileType uint32

const (
	FileTypeCtl     FileType = 1
	FileTypeLog     FileType = 2
	FileTypeData    FileType = 3
	FileTypeLCP     FileType = 4
	FileTypeUndoLog FileType = 5
)

// SectionType tags each fixed-format section within a file body.
type SectionType uint32

const (
	SectionFileHeader       SectionType = 1
	SectionTableList        SectionType = 2
	SectionTableDescription SectionType = 3
	SectionFragmentInfo     SectionType = 4
	SectionGCPEntry         SectionType = 5
	SectionFragmentHeader   SectionType = 6
	SectionFragmentFooter   SectionType = 7
)

// magic is "NDBBACKUP" truncated to 8 bytes, per spec §6.1.
const magic = "NDBBACKU"

// FileHeader is the fixed 12-word (FileHeaderByteLen) header written at
// the start of every backup file: the 2-word magic plus ten u32 fields.
type FileHeader struct {
	BackupVersion uint32
	FileType      FileType
	BackupID      uint32
	BackupKey0    uint32
	BackupKey1    uint32
	NdbVersion    uint32
	MySQLVersion  uint32
}

const (
	byteOrderMarker = 0x12345678
	// fileHeaderBodyWords is the section's own declared SectionLength
	// (spec §6.1's "SectionLength = size - 3", size being the 10 u32
	// fields from BackupVersion through MySQLVersion).
	fileHeaderBodyWords = 7
	// fileHeaderWords is the header's total on-disk word count: the
	// 2-word Magic preamble, the SectionType/SectionLength pair, plus
	// BackupVersion and the 7-word body.
	fileHeaderWords = 5 + fileHeaderBodyWords
)

// Version constants stamped into every FileHeader (spec §6.1's "cluster
// version, language version"); 80034 follows NDB's
// major*10000+minor*100+patch version-encoding convention.
const (
	CurrentBackupVersion = 1
	CurrentNdbVersion    = 80034
	CurrentMySQLVersion  = 80034
)

// AppendFileHeader appends the file header to dst, returning the
// extended slice.
func AppendFileHeader(dst []byte, h FileHeader) []byte {
	dst = append(dst, []byte(magic)...)
	dst = appendU32(dst, h.BackupVersion)
	dst = appendU32(dst, uint32(SectionFileHeader))
	dst = appendU32(dst, fileHeaderBodyWords)
	dst = appendU32(dst, uint32(h.FileType))
	dst = appendU32(dst, h.BackupID)
	dst = appendU32(dst, h.BackupKey0)
	dst = appendU32(dst, h.BackupKey1)
	dst = appendU32(dst, byteOrderMarker)
	dst = appendU32(dst, h.NdbVersion)
	dst = appendU32(dst, h.MySQLVersion)
	return dst
}

// FileHeaderByteLen is the on-disk size, in bytes, of a FileHeader.
const FileHeaderByteLen = fileHeaderWords * 4

// DecodeFileHeader parses a FileHeader from the start of src, returning
// the header and the number of bytes consumed.
func DecodeFileHeader(src []byte) (FileHeader, int, error) {
	if len(src) < FileHeaderByteLen {
		return FileHeader{}, 0, fmt.Errorf("wireformat: short file header: have %d bytes, need %d", len(src), FileHeaderByteLen)
	}
	if string(src[:8]) != magic {
		return FileHeader{}, 0, fmt.Errorf("wireformat: bad magic %q", src[:8])
	}
	backupVersion := readU32(src[8:12])
	sectionType := readU32(src[12:16])
	if SectionType(sectionType) != SectionFileHeader {
		return FileHeader{}, 0, fmt.Errorf("wireformat: expected FILE_HEADER section, got %d", sectionType)
	}
	// src[16:20] is SectionLength, not independently validated here.
	fileType := readU32(src[20:24])
	backupID := readU32(src[24:28])
	key0 := readU32(src[28:32])
	key1 := readU32(src[32:36])
	order := readU32(src[36:40])
	if order != byteOrderMarker {
		return FileHeader{}, 0, fmt.Errorf("wireformat: bad byte order marker 0x%x", order)
	}
	ndbVersion := readU32(src[40:44])
	mysqlVersion := readU32(src[44:48])

	return FileHeader{
		BackupVersion: backupVersion,
		FileType:      FileType(fileType),
		BackupID:      backupID,
		BackupKey0:    key0,
		BackupKey1:    key1,
		NdbVersion:    ndbVersion,
		MySQLVersion:  mysqlVersion,
	}, FileHeaderByteLen, nil
}

func appendU32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

func readU32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
