// Package obslog wires the backup subsystem's structured logging onto
// github.com/joeycumines/logiface, using the zerolog backend
// (github.com/joeycumines/izerolog) the way logiface-zerolog/zerolog.go
// wires its own example logger. Engines never format strings by hand;
// they attach typed fields (backupId, nodeId, phase, errorCode) so the
// event-report surface of spec §7 stays machine-parseable.
package obslog

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the concrete logger type used across every package in this
// module.
type Logger = logiface.Logger[*izerolog.Event]

// New builds a Logger writing newline-delimited JSON to w (os.Stdout by
// default), at the given minimum level.
func New(w io.Writer, level logiface.Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	return logiface.New[*izerolog.Event](
		izerolog.WithZerolog(zl),
		logiface.WithLevel[*izerolog.Event](level),
	)
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *Logger {
	return New(io.Discard, logiface.LevelEmergency)
}

// WithBackup returns a child logger scoped to a single backup/node pair,
// the way every engine method should log: through a context carrying
// these identifying fields rather than ad hoc format strings.
func WithBackup(l *Logger, backupID uint64, nodeID uint32) *Logger {
	return l.Clone().
		Call(func(b *logiface.Context[*izerolog.Event]) {
			b.Uint64(`backupId`, backupID)
			b.Uint64(`nodeId`, uint64(nodeID))
		}).
		Logger()
}
