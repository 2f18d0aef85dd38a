package diag_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/diag"
	"github.com/ndbcluster/backupcoord/errs"
)

type recorder struct {
	mu     sync.Mutex
	kinds  []string
	fields []map[string]any
}

func (r *recorder) reply(kind string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.fields = append(r.fields, fields)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

func newTestCommands(t *testing.T, limiter *diag.Limiter) (*diag.Commands, *config.Config, *recorder) {
	t.Helper()
	cfg := config.New()
	rec := &recorder{}
	var triggered []uint32
	var removed []uint64

	cmds := diag.New(diag.Deps{
		Config: cfg,
		TriggerSelfBackup: func(ctx context.Context, nodeID uint32) error {
			triggered = append(triggered, nodeID)
			return nil
		},
		RemoveBackupFiles: func(ctx context.Context, backupID uint64) error {
			removed = append(removed, backupID)
			return nil
		},
		DumpRecords: func(nodeID uint32) string { return "dump-for-node" },
		Reply:       rec.reply,
	}, limiter)
	return cmds, cfg, rec
}

func TestSetBufferSizeAltersConfigLive(t *testing.T) {
	t.Parallel()

	cmds, cfg, rec := newTestCommands(t, nil)
	require.NoError(t, cmds.SetBufferSize(10, diag.BufferData, 4096))
	require.Equal(t, 4096, cfg.DataBufferSize)
	require.NoError(t, cmds.SetBufferSize(10, diag.BufferLog, 2048))
	require.Equal(t, 2048, cfg.LogBufferSize)
	require.Equal(t, 2, rec.count())
}

func TestSetCompressionDefault(t *testing.T) {
	t.Parallel()

	cmds, cfg, _ := newTestCommands(t, nil)
	require.False(t, cfg.CompressedBackup)
	require.NoError(t, cmds.SetCompressionDefault(10, true))
	require.True(t, cfg.CompressedBackup)
}

func TestTriggerSelfBackupAndRemoveAndDump(t *testing.T) {
	t.Parallel()

	cmds, _, _ := newTestCommands(t, nil)
	require.NoError(t, cmds.TriggerSelfBackup(context.Background(), 10))
	require.NoError(t, cmds.RemoveBackupFiles(context.Background(), 10, 42))

	dump, err := cmds.DumpRecords(10)
	require.NoError(t, err)
	require.Equal(t, "dump-for-node", dump)
}

func TestLimiterRejectsFloodedDumpCommands(t *testing.T) {
	t.Parallel()

	limiter := diag.NewLimiter(map[time.Duration]int{time.Minute: 2})
	cmds, _, _ := newTestCommands(t, limiter)

	require.NoError(t, cmds.SetCompressionDefault(10, true))
	require.NoError(t, cmds.SetCompressionDefault(10, false))

	err := cmds.SetCompressionDefault(10, true)
	require.Error(t, err)
	var be *errs.Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, errs.CodeDumpRateLimited, be.Code)

	// A different node's own budget is unaffected.
	require.NoError(t, cmds.SetCompressionDefault(11, true))
}
