// Package fakesvc provides deterministic in-memory fakes for the
// external collaborators of services.* (spec §6.3), used only by tests
// in the slave, master and fileset packages. Engineering style
// (injectable failure points, deterministic sequencing) follows
// catrate's own test doubles (testutil_counteventsperrate_test.go).
package fakesvc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ndbcluster/backupcoord/services"
)

// Sequence is an in-memory monotonic sequence generator.
type Sequence struct {
	next      atomic.Uint64
	FailNextN int // if > 0, the next N calls fail with a transient error
	mu        sync.Mutex
}

func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

func (s *Sequence) NextVal(ctx context.Context, sequenceID uint32) (uint64, error) {
	s.mu.Lock()
	if s.FailNextN > 0 {
		s.FailNextN--
		s.mu.Unlock()
		return 0, fmt.Errorf("fakesvc: sequence: transient failure")
	}
	s.mu.Unlock()
	return s.next.Add(1) - 1, nil
}

// Mutex is an in-memory, single-node mutex service: Lock on a mutex id
// that is already held returns an error at once; nothing is queued.
type Mutex struct {
	mu      sync.Mutex
	holders map[uint32]bool
}

func NewMutex() *Mutex {
	return &Mutex{holders: make(map[uint32]bool)}
}

func (m *Mutex) Lock(ctx context.Context, mutexID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[mutexID] {
		return fmt.Errorf("fakesvc: mutex %d already held", mutexID)
	}
	m.holders[mutexID] = true
	return nil
}

func (m *Mutex) Unlock(ctx context.Context, mutexID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holders, mutexID)
	return nil
}

// Dictionary is an in-memory table catalogue.
type Dictionary struct {
	mu        sync.Mutex
	tables    []services.TableMeta
	descs     map[uint32][]byte
	nextTrig  uint32
	lockedTab map[uint32]bool
}

func NewDictionary(tables []services.TableMeta, descs map[uint32][]byte) *Dictionary {
	return &Dictionary{tables: tables, descs: descs, nextTrig: 1, lockedTab: make(map[uint32]bool)}
}

func (d *Dictionary) ListTables(ctx context.Context) ([]services.TableMeta, error) {
	return d.tables, nil
}

func (d *Dictionary) GetTabInfo(ctx context.Context, tableID uint32) ([]byte, error) {
	if desc, ok := d.descs[tableID]; ok {
		return desc, nil
	}
	return nil, fmt.Errorf("fakesvc: no descriptor for table %d", tableID)
}

func (d *Dictionary) CreateTrigger(ctx context.Context, req services.CreateTriggerRequest) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextTrig
	d.nextTrig++
	return id, nil
}

func (d *Dictionary) DropTrigger(ctx context.Context, tableID, triggerID uint32) error {
	return nil
}

func (d *Dictionary) LockTable(ctx context.Context, tableID uint32, lock bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if lock {
		if d.lockedTab[tableID] {
			return fmt.Errorf("fakesvc: table %d already locked", tableID)
		}
		d.lockedTab[tableID] = true
	} else {
		delete(d.lockedTab, tableID)
	}
	return nil
}

// Distribution is an in-memory fragment placement map plus a
// caller-driven gci clock for WaitGCP.
type Distribution struct {
	mu         sync.Mutex
	fragCounts map[uint32]uint32
	nodes      map[[2]uint32][2]uint32 // (tableID,fragID) -> (node,instanceKey)
	gci        uint32
}

func NewDistribution(fragCounts map[uint32]uint32, nodes map[[2]uint32][2]uint32) *Distribution {
	return &Distribution{fragCounts: fragCounts, nodes: nodes, gci: 1}
}

func (d *Distribution) ScanTab(ctx context.Context, tableID uint32) (uint32, error) {
	return d.fragCounts[tableID], nil
}

func (d *Distribution) ScanGetNodes(ctx context.Context, tableID, fragmentID uint32) (uint32, uint32, error) {
	v, ok := d.nodes[[2]uint32{tableID, fragmentID}]
	if !ok {
		return 0, 0, fmt.Errorf("fakesvc: no placement for table %d fragment %d", tableID, fragmentID)
	}
	return v[0], v[1], nil
}

func (d *Distribution) ScanTabComplete(ctx context.Context, tableID uint32) error { return nil }

// AdvanceGCP bumps the fake cluster-wide gci; tests call this to model
// checkpoint progress.
func (d *Distribution) AdvanceGCP() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gci++
	return d.gci
}

func (d *Distribution) WaitGCP(ctx context.Context, mode services.WaitGCPMode) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gci, nil
}

// RowStore is an in-memory table of fixed rows, served in BatchSize
// chunks per ScanNext call.
type RowStore struct {
	mu   sync.Mutex
	rows map[[2]uint32][]services.RowSegment // (tableID,fragID) -> rows
	pos  map[[2]uint32]int
}

func NewRowStore(rows map[[2]uint32][]services.RowSegment) *RowStore {
	return &RowStore{rows: rows, pos: make(map[[2]uint32]int)}
}

func (r *RowStore) ScanNext(ctx context.Context, req services.ScanFragRequest) (services.ScanResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uint32{req.TableID, req.FragmentID}
	all := r.rows[key]
	pos := r.pos[key]

	batch := req.BatchSize
	if batch == 0 {
		batch = 16
	}
	end := pos + int(batch)
	if end > len(all) {
		end = len(all)
	}
	out := all[pos:end]
	r.pos[key] = end

	return services.ScanResult{Rows: out, Complete: end >= len(all)}, nil
}

// FileSystem is an in-memory filesystem: each Open call allocates a
// growable byte buffer, keyed by an incrementing handle.
type FileSystem struct {
	mu      sync.Mutex
	next    uint32
	files   map[uint32]*fakeFile
	// FailAppend, if set, causes every subsequent Append to fail,
	// modelling a filesystem error mid-drain (spec §7).
	FailAppend bool
}

type fakeFile struct {
	spec    services.FileSpec
	data    []byte
	closed  bool
	removed bool
}

func NewFileSystem() *FileSystem {
	return &FileSystem{files: make(map[uint32]*fakeFile), next: 1}
}

func (fs *FileSystem) Open(ctx context.Context, spec services.FileSpec) (uint32, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	h := fs.next
	fs.next++
	fs.files[h] = &fakeFile{spec: spec}
	return h, nil
}

func (fs *FileSystem) Append(ctx context.Context, handle uint32, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.FailAppend {
		return fmt.Errorf("fakesvc: filesystem append failure")
	}
	f, ok := fs.files[handle]
	if !ok {
		return fmt.Errorf("fakesvc: unknown file handle %d", handle)
	}
	f.data = append(f.data, data...)
	return nil
}

func (fs *FileSystem) Close(ctx context.Context, handle uint32, removeOnClose bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[handle]
	if !ok {
		return fmt.Errorf("fakesvc: unknown file handle %d", handle)
	}
	f.closed = true
	if removeOnClose {
		f.removed = true
	}
	return nil
}

func (fs *FileSystem) Remove(ctx context.Context, handle uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[handle]
	if !ok {
		return fmt.Errorf("fakesvc: unknown file handle %d", handle)
	}
	f.removed = true
	return nil
}

// Contents returns the bytes appended to handle so far, for assertions.
func (fs *FileSystem) Contents(handle uint32) []byte {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.files[handle]
	if f == nil {
		return nil
	}
	return append([]byte(nil), f.data...)
}

// Removed reports whether handle was removed (on close or explicitly).
func (fs *FileSystem) Removed(handle uint32) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f := fs.files[handle]
	return f != nil && f.removed
}
