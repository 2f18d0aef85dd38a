package fileset

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ndbcluster/backupcoord/flowbuffer"
	"github.com/ndbcluster/backupcoord/internal/obslog"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/services"
	"github.com/ndbcluster/backupcoord/wireformat"
	"github.com/ndbcluster/backupcoord/writerate"
)

// Deps are the collaborators one File's drain task needs, shared
// across every File on a node (spec §4.2: the governor "enforces a
// ceiling ... across all backup file writers").
type Deps struct {
	FS       services.FileSystem
	Governor *writerate.Governor
	Loop     *nodeloop.Loop
	Log      *obslog.Logger
	// OnError is invoked at most once, the first time this file
	// records an error (spec §7's "first error" propagation policy).
	OnError func(err error)
	// OnClosed, if set, is invoked once the filesystem close reply has
	// been applied and the OPEN/CLOSING bits cleared — the signal
	// SlaveEngine waits on before checking Backup.AllFilesClosed.
	OnClosed func(f *File)
}

// File pairs a models.File lifecycle record with the runtime state
// (FlowBuffer, filesystem handle, drain retry counter) the record
// itself does not carry, since models is a plain value-type arena
// (spec §9's design note).
type File struct {
	rec     *models.File
	fb      *flowbuffer.FlowBuffer
	storage []uint32
	spec    services.FileSpec
	deps    Deps

	draining bool
}

// Open allocates the FlowBuffer, writes the file's fixed FileHeader as
// the very first words in it (spec §6.1: "every file begins with a
// fixed header"), transitions the record to OPENING, and issues the
// filesystem open (spec §4.3's "∅ → OPENING → OPENING|OPEN"). header's
// FileType is overridden from rec.FileType before writing.
func Open(ctx context.Context, rec *models.File, spec services.FileSpec, deps Deps, header wireformat.FileHeader, bufferWords, block, minRead, maxRead, maxWrite int) (*File, error) {
	storage := make([]uint32, bufferWords)
	fb, err := flowbuffer.Setup(storage, block, minRead, maxRead, maxWrite)
	if err != nil {
		return nil, fmt.Errorf("fileset: flowbuffer setup: %w", err)
	}

	f := &File{rec: rec, fb: fb, storage: storage, spec: spec, deps: deps}
	f.rec.Transition(models.FileFlagOpening, 0)
	f.rec.BufferWords = bufferWords

	header.FileType = rec.FileType
	if !appendWords(fb, wireformat.AppendFileHeader(nil, header)) {
		f.rec.Transition(0, models.FileFlagOpening)
		return nil, fmt.Errorf("fileset: buffer too small for file header")
	}

	handle, err := deps.FS.Open(ctx, spec)
	if err != nil {
		f.rec.Transition(0, models.FileFlagOpening)
		return nil, fmt.Errorf("fileset: filesystem open: %w", err)
	}
	f.rec.FileSystemHandle = handle
	f.rec.Transition(models.FileFlagOpen, models.FileFlagOpening)
	return f, nil
}

// appendWords converts a wireformat-encoded byte frame back to words and
// writes it into fb, mirroring slave/handlers.go's appendFrame.
func appendWords(fb *flowbuffer.FlowBuffer, frame []byte) bool {
	words := make([]uint32, len(frame)/4)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(frame[i*4:])
	}
	window, ok := fb.GetWritePtr(len(words))
	if !ok {
		return false
	}
	copy(window, words)
	fb.UpdateWritePtr(len(words))
	return true
}

// FlowBuffer exposes the owned buffer so callers (SlaveEngine's scan
// and log paths) can call GetWritePtr/UpdateWritePtr directly.
func (f *File) FlowBuffer() *flowbuffer.FlowBuffer { return f.fb }

// Record returns the backing lifecycle record.
func (f *File) Record() *models.File { return f.rec }

// StartDrain sets the FILE_THREAD bit and submits the first drain
// iteration onto the node loop (spec §4.3: "a cooperative task is
// draining the FlowBuffer into the file-system").
func (f *File) StartDrain() error {
	if f.draining {
		return nil
	}
	f.draining = true
	f.rec.Transition(models.FileFlagFileThread, 0)
	return f.deps.Loop.Submit(func() { f.runDrain(context.Background()) })
}

// pendingWords reports how many words are buffered but not yet
// appended to the filesystem.
func (f *File) pendingWords() int {
	return f.fb.Size() - f.fb.Free()
}

func (f *File) runDrain(ctx context.Context) {
	window, eof := f.fb.GetReadPtr()

	if len(window) == 0 {
		if eof {
			f.finishDrain(ctx)
			return
		}
		// spec §5's two distinct drain re-poll delays: nothing at all
		// pending gets the longer 50ms poll, a partial (sub-MinRead)
		// amount still accumulating gets the shorter 20ms poll.
		delay := nodeloop.Yield50ms
		if f.pendingWords() > 0 {
			delay = nodeloop.Yield20ms
		}
		f.requeue(delay)
		return
	}

	if !f.deps.Governor.WriteReady() {
		f.requeue(nodeloop.Yield100ms)
		return
	}

	data := wordsToBytes(window)
	if err := f.deps.FS.Append(ctx, f.rec.FileSystemHandle, data); err != nil {
		f.fail(fmt.Errorf("fileset: append failed: %w", err))
		return
	}

	f.fb.UpdateReadPtr(len(window))
	f.deps.Governor.RecordWrite(len(window))
	f.rec.Totals.Bytes += uint64(len(data))

	if eof && f.pendingWords() == 0 {
		f.finishDrain(ctx)
		return
	}
	f.requeue(nodeloop.YieldNone)
}

func (f *File) requeue(delay nodeloop.YieldDelay) {
	_ = f.deps.Loop.Continue(delay, func() { f.runDrain(context.Background()) })
}

func (f *File) fail(err error) {
	first := f.rec.ErrorCode == 0
	f.rec.ErrorCode = -1
	f.draining = false
	if first && f.deps.OnError != nil {
		f.deps.OnError(err)
	}
}

// finishDrain transitions FILE_THREAD off, CLOSING on, and issues the
// filesystem close (spec §4.3's close path). removeOnClose is true iff
// an error was recorded, matching "If an error has been recorded,
// close requests file removal."
func (f *File) finishDrain(ctx context.Context) {
	f.draining = false
	f.rec.Transition(models.FileFlagClosing, models.FileFlagFileThread|models.FileFlagScanThread)

	removeOnClose := f.rec.ErrorCode != 0
	if err := f.deps.FS.Close(ctx, f.rec.FileSystemHandle, removeOnClose); err != nil {
		f.fail(fmt.Errorf("fileset: close failed: %w", err))
		return
	}
	f.rec.Transition(0, models.FileFlagOpen|models.FileFlagClosing)
	if f.deps.OnClosed != nil {
		f.deps.OnClosed(f)
	}
}

// wordsToBytes renders a FlowBuffer window as its big-endian byte
// stream, matching wireformat's word-at-a-time encoding convention.
func wordsToBytes(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}
