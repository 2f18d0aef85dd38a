package fileset

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndbcluster/backupcoord/internal/fakesvc"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/services"
	"github.com/ndbcluster/backupcoord/wireformat"
	"github.com/ndbcluster/backupcoord/writerate"
)

var testHeader = wireformat.FileHeader{
	BackupVersion: wireformat.CurrentBackupVersion,
	BackupID:      1,
	BackupKey0:    2,
	BackupKey1:    3,
	NdbVersion:    wireformat.CurrentNdbVersion,
	MySQLVersion:  wireformat.CurrentMySQLVersion,
}

func runLoop(t *testing.T) *nodeloop.Loop {
	t.Helper()
	l, err := nodeloop.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestDrainWritesAllBufferedWordsThenCloses(t *testing.T) {
	t.Parallel()

	loop := runLoop(t)
	fs := fakesvc.NewFileSystem()
	gov := writerate.New(1_000_000, 4096)

	closed := make(chan struct{})
	deps := Deps{
		FS:       fs,
		Governor: gov,
		Loop:     loop,
		OnError: func(err error) {
			t.Errorf("unexpected drain error: %v", err)
		},
		OnClosed: func(f *File) { close(closed) },
	}

	rec := &models.File{}
	f, err := Open(context.Background(), rec, services.FileSpec{BackupID: 1, NodeID: 2, Suffix: "data"}, deps, testHeader,
		64, 4, 8, 32, 16)
	require.NoError(t, err)
	require.True(t, rec.Flags.Has(models.FileFlagOpen))

	fb := f.FlowBuffer()
	window, ok := fb.GetWritePtr(8)
	require.True(t, ok)
	for i := range window {
		window[i] = uint32(i + 1)
	}
	fb.UpdateWritePtr(8)
	fb.Eof()

	require.NoError(t, f.StartDrain())

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("file never closed")
	}

	require.Equal(t, models.FileFlag(0), rec.Flags)
	require.False(t, fs.Removed(rec.FileSystemHandle))
	// the FileHeader Open writes (wireformat.FileHeaderByteLen bytes) plus
	// the 8 manually-written words.
	require.Len(t, fs.Contents(rec.FileSystemHandle), wireformat.FileHeaderByteLen+32)
}

func TestDrainMarksFileErroredOnAppendFailure(t *testing.T) {
	t.Parallel()

	loop := runLoop(t)
	fs := fakesvc.NewFileSystem()
	fs.FailAppend = true
	gov := writerate.New(1_000_000, 4096)

	failed := make(chan error, 1)
	deps := Deps{
		FS:       fs,
		Governor: gov,
		Loop:     loop,
		OnError:  func(err error) { failed <- err },
	}

	rec := &models.File{}
	f, err := Open(context.Background(), rec, services.FileSpec{BackupID: 1, NodeID: 2, Suffix: "log"}, deps, testHeader,
		64, 4, 8, 32, 16)
	require.NoError(t, err)

	fb := f.FlowBuffer()
	window, ok := fb.GetWritePtr(8)
	require.True(t, ok)
	fb.UpdateWritePtr(len(window))
	fb.Eof()

	require.NoError(t, f.StartDrain())

	select {
	case err := <-failed:
		require.Error(t, err)
		require.NotZero(t, rec.ErrorCode)
	case <-time.After(2 * time.Second):
		t.Fatal("drain never reported the append failure")
	}
}
