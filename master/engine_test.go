package master_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndbcluster/backupcoord/config"
	"github.com/ndbcluster/backupcoord/errs"
	"github.com/ndbcluster/backupcoord/internal/fakesvc"
	"github.com/ndbcluster/backupcoord/master"
	"github.com/ndbcluster/backupcoord/models"
	"github.com/ndbcluster/backupcoord/nodeloop"
	"github.com/ndbcluster/backupcoord/services"
)

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

type replyRecorder struct {
	mu    sync.Mutex
	kinds []string
	last  map[string]any
	err   *errs.Error
}

func (r *replyRecorder) record(kind string, err *errs.Error, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
	r.last = fields
	r.err = err
}

func (r *replyRecorder) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *replyRecorder) lastErr() *errs.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// phaseOf reads e.Phase() on the node loop, since only handlers running
// on the loop may touch Engine state without a race.
func phaseOf(t *testing.T, loop *nodeloop.Loop, e *master.Engine) master.MasterPhase {
	t.Helper()
	ch := make(chan master.MasterPhase, 1)
	require.NoError(t, loop.Submit(func() { ch <- e.Phase() }))
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading phase")
		return 0
	}
}

type testDeps struct {
	loop *nodeloop.Loop
	dict *fakesvc.Dictionary
	dist *fakesvc.Distribution
	tr   *fakesvc.Transport
	rec  *replyRecorder
}

// handleNodeFailure runs Engine.HandleNodeFailure on the node loop, since
// real callers (the cluster-membership service) are expected to invoke it
// the same way every other Engine continuation runs — confined to the
// loop goroutine.
func handleNodeFailure(t *testing.T, loop *nodeloop.Loop, e *master.Engine, failed []uint32, newMasterRef uint32) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, loop.Submit(func() {
		e.HandleNodeFailure(context.Background(), failed, newMasterRef)
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out running HandleNodeFailure")
	}
}

func newTestMaster(t *testing.T, localNodeID uint32) (*master.Engine, *testDeps) {
	return newTestMasterWithDist(t, localNodeID, fakesvc.NewDistribution(
		map[uint32]uint32{1: 1},
		map[[2]uint32][2]uint32{{1, 0}: {10, 0}},
	))
}

func newTestMasterWithDist(t *testing.T, localNodeID uint32, dist *fakesvc.Distribution) (*master.Engine, *testDeps) {
	t.Helper()
	loop := runLoop(t)

	dict := fakesvc.NewDictionary(
		[]services.TableMeta{{TableID: 1, TableType: uint32(models.TableTypeTable), Online: true}},
		map[uint32][]byte{1: []byte("descriptor-bytes")},
	)
	tr := fakesvc.NewTransport()
	rec := &replyRecorder{}

	deps := master.Deps{
		Sequence:     fakesvc.NewSequence(1000),
		Mutex:        fakesvc.NewMutex(),
		Dictionary:   dict,
		Distribution: dist,
		Transport:    tr,
		Loop:         loop,
		Config:       config.New(),
		LocalNodeID:  localNodeID,
		Reply:        rec.record,
	}
	e := master.New(deps)
	return e, &testDeps{loop: loop, dict: dict, dist: dist, tr: tr, rec: rec}
}

// driveGCP keeps advancing the fake cluster gci until stop is closed, so
// the stop-point barrier (gci >= startGCP+3) eventually clears without
// the test needing to guess timing.
func driveGCP(t *testing.T, dist *fakesvc.Distribution, stop <-chan struct{}) {
	t.Helper()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(15 * time.Millisecond):
				dist.AdvanceGCP()
			}
		}
	}()
}

func TestBackupReqHappyPath(t *testing.T) {
	t.Parallel()

	e, d := newTestMaster(t, 10)
	d.tr.FragmentRecords[[2]uint32{1, 0}] = 42
	d.tr.FragmentBytes[[2]uint32{1, 0}] = 4096

	stop := make(chan struct{})
	driveGCP(t, d.dist, stop)
	t.Cleanup(func() { close(stop) })

	nodes := models.NewNodeSet(10, 11)
	flags := models.FlagWaitCompleted | models.FlagWaitStarted
	e.BackupReq(context.Background(), 777, 123, flags, nodes, nil)

	waitUntil(t, 5*time.Second, func() bool { return d.rec.has("BackupCompleteRep") })

	require.True(t, d.rec.has("BackupConf"))
	require.True(t, d.rec.has("BackupCompleteRep"))
	require.False(t, d.rec.has("BackupRef"))
	require.False(t, d.rec.has("BackupAbortRep"))

	completeFields := d.rec.last
	require.Equal(t, uint64(42), completeFields["noOfRecords"])
	require.Equal(t, uint64(4096), completeFields["noOfBytes"])
	// both participants reply StopBackupConf with 128 log bytes / 4 log
	// records each; the master sums them.
	require.Equal(t, uint64(256), completeFields["noOfLogBytes"])
	require.Equal(t, uint64(8), completeFields["noOfLogRecords"])

	completes := d.tr.Completes()
	require.NotEmpty(t, completes)
	require.Equal(t, uint64(42), completes[0].Records)

	require.Equal(t, master.PhaseNone, phaseOf(t, d.loop, e))
}

func TestBackupReqAbortsOnDefineBackupRef(t *testing.T) {
	t.Parallel()

	// Node 11 never replies to DefineBackup; the master only learns of
	// its death once HandleNodeFailure is called (spec §4.5 point 3), at
	// which point its synthetic Ref drives the same masterAbort path a
	// real DefineBackupRef would.
	e, d := newTestMaster(t, 10)
	d.tr.FailNode(11)

	nodes := models.NewNodeSet(10, 11)
	flags := models.FlagWaitStarted
	e.BackupReq(context.Background(), 777, 123, flags, nodes, nil)

	waitUntil(t, 2*time.Second, func() bool { return phaseOf(t, d.loop, e) == master.PhaseDefineBackup })
	handleNodeFailure(t, d.loop, e, []uint32{11}, 10)

	waitUntil(t, 5*time.Second, func() bool { return d.rec.has("BackupAbortRep") })
	require.NotNil(t, d.rec.lastErr())
	require.Equal(t, master.PhaseAborting, phaseOf(t, d.loop, e))
}

func TestBackupReqSeizedID(t *testing.T) {
	t.Parallel()

	e, d := newTestMaster(t, 10)
	stop := make(chan struct{})
	driveGCP(t, d.dist, stop)
	t.Cleanup(func() { close(stop) })

	nodes := models.NewNodeSet(10)
	seize := uint64(555)
	e.BackupReq(context.Background(), 1, 1, models.FlagWaitCompleted, nodes, &seize)

	waitUntil(t, 5*time.Second, func() bool { return d.rec.has("BackupCompleteRep") })
	require.Equal(t, uint64(555), e.BackupID())
}

func TestHandleNodeFailureParticipantDiesDuringFragmentPhase(t *testing.T) {
	t.Parallel()

	// Table 1/fragment 0 is owned by node 11, which "dies" mid-scan: it
	// still replies fine to DefineBackup/StartBackup, so the fragment
	// phase must be completed via the synthetic-reply path rather than a
	// real BackupFragmentReply.
	e, d := newTestMasterWithDist(t, 10, fakesvc.NewDistribution(
		map[uint32]uint32{1: 1},
		map[[2]uint32][2]uint32{{1, 0}: {11, 0}},
	))
	d.tr.FailFragment(1, 0)

	nodes := models.NewNodeSet(10, 11)
	e.BackupReq(context.Background(), 1, 1, models.FlagWaitStarted, nodes, nil)

	waitUntil(t, 2*time.Second, func() bool { return phaseOf(t, d.loop, e) == master.PhaseBackupFragment })

	handleNodeFailure(t, d.loop, e, []uint32{11}, 10)

	waitUntil(t, 5*time.Second, func() bool { return d.rec.has("BackupAbortRep") })
	require.Equal(t, master.PhaseAborting, phaseOf(t, d.loop, e))
}

func TestHandleNodeFailureMasterDiesTriggersAbort(t *testing.T) {
	t.Parallel()

	e, d := newTestMaster(t, 10)
	d.tr.FailNode(10) // the current master's own node never replies

	nodes := models.NewNodeSet(10, 11)
	e.BackupReq(context.Background(), 1, 1, models.FlagWaitStarted, nodes, nil)

	handleNodeFailure(t, d.loop, e, []uint32{10}, 11)

	waitUntil(t, 5*time.Second, func() bool { return d.rec.has("BackupAbortRep") })
	require.Equal(t, master.PhaseAborting, phaseOf(t, d.loop, e))
}
