package diag

import (
	"context"
	"fmt"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/errs"
)

// BufferKind selects which of the two live-resizable FlowBuffers a
// SetBufferSize dump command targets (spec §6.5).
type BufferKind int

const (
	BufferData BufferKind = iota
	BufferLog
)

// Deps are Commands' collaborators. SetBufferSize and
// SetCompressionDefault act directly on Config (it already exposes a
// Live method for this, spec §6.5's "alter buffer sizes live"); the
// other three dump codes belong to engines diag must not import
// directly (master's self-backup, a file system's remove, a record
// arena's dump), so they are supplied as hooks — the same externalised-
// collaborator shape master.Transport uses for its signalling bus.
type Deps struct {
	Config *config.Config

	TriggerSelfBackup func(ctx context.Context, nodeID uint32) error
	RemoveBackupFiles func(ctx context.Context, backupID uint64) error
	DumpRecords       func(nodeID uint32) string

	// Reply delivers the dump command's informational response, if any,
	// mirroring the Reply hooks on master.Engine/slave.Engine.
	Reply func(kind string, fields map[string]any)
}

// Commands implements the five dump codes of spec §6.5, each gated by a
// per-node Limiter.
type Commands struct {
	deps    Deps
	limiter *Limiter
}

func New(deps Deps, limiter *Limiter) *Commands {
	return &Commands{deps: deps, limiter: limiter}
}

func (c *Commands) admit(nodeID uint32) error {
	if !c.limiter.Admit(nodeID) {
		return errs.New(errs.CodeDumpRateLimited, "dump command rate limited")
	}
	return nil
}

// SetBufferSize alters a FlowBuffer's size live (spec §6.5); per
// config.Config.Live's doc comment, the new size takes effect on the
// next file opened for that buffer kind, not the one currently open.
func (c *Commands) SetBufferSize(nodeID uint32, which BufferKind, words int) error {
	if err := c.admit(nodeID); err != nil {
		return err
	}
	switch which {
	case BufferData:
		c.deps.Config.Live(config.WithDataBufferSize(words))
	case BufferLog:
		c.deps.Config.Live(config.WithLogBufferSize(words))
	default:
		return fmt.Errorf("diag: unknown buffer kind %d", which)
	}
	c.deps.Reply("SetBufferSizeConf", map[string]any{"nodeId": nodeID, "which": which, "words": words})
	return nil
}

// SetCompressionDefault toggles whether newly opened data/log files use
// compression (spec §6.5).
func (c *Commands) SetCompressionDefault(nodeID uint32, enabled bool) error {
	if err := c.admit(nodeID); err != nil {
		return err
	}
	c.deps.Config.Live(config.WithCompressedBackup(enabled))
	c.deps.Reply("SetCompressionDefaultConf", map[string]any{"nodeId": nodeID, "enabled": enabled})
	return nil
}

// TriggerSelfBackup issues a self-test backup on nodeID (spec §6.5:
// "trigger a self-backup for testing").
func (c *Commands) TriggerSelfBackup(ctx context.Context, nodeID uint32) error {
	if err := c.admit(nodeID); err != nil {
		return err
	}
	return c.deps.TriggerSelfBackup(ctx, nodeID)
}

// RemoveBackupFiles removes a completed backup's files by sequence
// (spec §6.5).
func (c *Commands) RemoveBackupFiles(ctx context.Context, nodeID uint32, backupID uint64) error {
	if err := c.admit(nodeID); err != nil {
		return err
	}
	if err := c.deps.RemoveBackupFiles(ctx, backupID); err != nil {
		return err
	}
	c.deps.Reply("RemoveBackupFilesConf", map[string]any{"nodeId": nodeID, "backupId": backupID})
	return nil
}

// DumpRecords prints an in-memory record dump for nodeID (spec §6.5).
func (c *Commands) DumpRecords(nodeID uint32) (string, error) {
	if err := c.admit(nodeID); err != nil {
		return "", err
	}
	return c.deps.DumpRecords(nodeID), nil
}
