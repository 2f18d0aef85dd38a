package fileset

import (
	"context"
	"fmt"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/services"
	"github.com/ndbcluster/backupcoord/wireformat"
)

// Set is the trio of files one Backup opens (spec §4.3: "Each Backup
// opens exactly three files ... suffix ∈ {ctl, data, log}").
type Set struct {
	Ctl  *File
	Data *File
	Log  *File
}

// OpenSet opens the ctl, data and log files for a backup in one call,
// deriving each FileSpec's suffix/compression/direct-I/O flags from
// cfg (spec §6.4) and closing any already-opened member on a later
// failure, so a partial Set is never left behind. backupKey0/backupKey1
// are the Backup's own identity words (spec §6.1's BackupKey_0/_1),
// shared across every file and every node participating in the backup,
// as distinct from nodeID which only feeds the file-naming suffix.
func OpenSet(ctx context.Context, backupID uint64, backupKey0, backupKey1 uint32, nodeID uint32, cfg *config.Config, deps Deps, undoLog bool) (*Set, error) {
	header := wireformat.FileHeader{
		BackupVersion: wireformat.CurrentBackupVersion,
		BackupID:      uint32(backupID),
		BackupKey0:    backupKey0,
		BackupKey1:    backupKey1,
		NdbVersion:    wireformat.CurrentNdbVersion,
		MySQLVersion:  wireformat.CurrentMySQLVersion,
	}

	// closeOpened closes (and removes) the members opened before a later
	// member's Open failed.
	closeOpened := func(files ...*File) {
		for _, f := range files {
			_ = deps.FS.Close(ctx, f.rec.FileSystemHandle, true)
			f.rec.Transition(0, models.FileFlagOpen)
		}
	}

	// the ctl storage holds its smallBufferWords usable window plus
	// smallBufferWords of MaxWrite tail scratch (see flowbuffer.Setup).
	ctlRec := &models.File{FileType: wireformat.FileTypeCtl}
	ctl, err := Open(ctx, ctlRec, fileSpec(backupID, nodeID, "ctl", cfg, false), deps, header,
		2*smallBufferWords, wordBlock, smallBufferWords, smallBufferWords, smallBufferWords)
	if err != nil {
		return nil, fmt.Errorf("fileset: open ctl: %w", err)
	}

	dataRec := &models.File{FileType: wireformat.FileTypeData}
	data, err := Open(ctx, dataRec, fileSpec(backupID, nodeID, "data", cfg, false), deps, header,
		cfg.DataBufferSize, wordBlock, cfg.MinWriteSize, cfg.MaxWriteSize, cfg.MaxWriteSize)
	if err != nil {
		closeOpened(ctl)
		return nil, fmt.Errorf("fileset: open data: %w", err)
	}

	// compression is forced off for an undo-style log, per spec §4.3.
	logType := wireformat.FileTypeLog
	if undoLog {
		logType = wireformat.FileTypeUndoLog
	}
	logRec := &models.File{FileType: logType}
	logFile, err := Open(ctx, logRec, fileSpec(backupID, nodeID, "log", cfg, undoLog), deps, header,
		cfg.LogBufferSize, wordBlock, cfg.MinWriteSize, cfg.MaxWriteSize, cfg.MaxWriteSize)
	if err != nil {
		closeOpened(ctl, data)
		return nil, fmt.Errorf("fileset: open log: %w", err)
	}

	return &Set{Ctl: ctl, Data: data, Log: logFile}, nil
}

// StartDrains starts every member's background drain task.
func (s *Set) StartDrains() error {
	for _, f := range []*File{s.Ctl, s.Data, s.Log} {
		if err := f.StartDrain(); err != nil {
			return err
		}
	}
	return nil
}

// AllClosed reports whether every member's OPEN/OPENING/CLOSING bits
// are clear (spec §3's Backup-destruction precondition).
func (s *Set) AllClosed() bool {
	for _, f := range []*File{s.Ctl, s.Data, s.Log} {
		if f.rec.Flags.Has(models.FileFlagOpen | models.FileFlagOpening | models.FileFlagClosing) {
			return false
		}
	}
	return true
}

const (
	wordBlock        = 4    // smallest aligned write granularity, in words
	smallBufferWords = 1024 // the ctl file's small fixed buffer (spec §4.4)
)

func fileSpec(backupID uint64, nodeID uint32, suffix string, cfg *config.Config, undoLog bool) services.FileSpec {
	compressed := cfg.CompressedBackup && !undoLog
	return services.FileSpec{
		BackupID:     backupID,
		NodeID:       nodeID,
		Suffix:       suffix,
		Compressed:   compressed,
		ODirect:      cfg.ODirect,
		DiskSyncSize: uint32(cfg.DiskSyncSize),
	}
}
