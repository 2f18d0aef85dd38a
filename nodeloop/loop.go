package nodeloop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/goroutineid"
)

// YieldDelay enumerates the only suspension delays spec §5 allows: a
// handler that cannot finish immediately self-posts a continuation at
// one of these, never a bespoke duration.
type YieldDelay time.Duration

const (
	YieldNone    YieldDelay = 0
	Yield20ms    YieldDelay = YieldDelay(20 * time.Millisecond)
	Yield50ms    YieldDelay = YieldDelay(50 * time.Millisecond)
	Yield100ms   YieldDelay = YieldDelay(100 * time.Millisecond)
	Yield300ms   YieldDelay = YieldDelay(300 * time.Millisecond)
)

// Loop confines one node-local block's execution to a single
// goroutine, matching spec §5's "single-threaded cooperative within
// each node-local block". It wraps eventloop.Loop, which supplies the
// task queue, timer heap and Run/Shutdown lifecycle.
type Loop struct {
	inner    *eventloop.Loop
	ownerGID atomic.Uint64
	hasOwner atomic.Bool
}

// New creates a Loop. Run must be called (typically in its own
// goroutine) before Submit/Continue callbacks will execute.
func New() (*Loop, error) {
	inner, err := eventloop.New()
	if err != nil {
		return nil, fmt.Errorf("nodeloop: %w", err)
	}
	return &Loop{inner: inner}, nil
}

// Run blocks, executing submitted tasks and firing timers, until ctx
// is cancelled or Shutdown is called. Call it from a dedicated
// goroutine; every other Loop method may be called from any goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.ownerGID.Store(goroutineid.Get())
	l.hasOwner.Store(true)
	return l.inner.Run(ctx)
}

// Shutdown requests the loop drain in-flight work and stop.
func (l *Loop) Shutdown(ctx context.Context) error {
	return l.inner.Shutdown(ctx)
}

// Submit enqueues fn to run on the loop goroutine — the vehicle for
// inter-node signal delivery (a MasterEngine posting into a
// SlaveEngine's loop, or vice versa).
func (l *Loop) Submit(fn func()) error {
	return l.inner.Submit(fn)
}

// SubmitInternal enqueues fn on the loop's internal priority queue —
// used for intra-node continuations (a handler re-posting itself) so
// they are serviced ahead of externally-arriving signals.
func (l *Loop) SubmitInternal(fn func()) error {
	return l.inner.SubmitInternal(fn)
}

// Continue self-posts fn as a delayed continuation at one of the spec
// §5 yield points — the sole suspension primitive for handlers that
// cannot finish in one run-to-completion pass (a re-queued
// BackupFragmentReq, a drain task re-poll, a retry backoff).
func (l *Loop) Continue(delay YieldDelay, fn func()) error {
	if delay == YieldNone {
		return l.SubmitInternal(fn)
	}
	return l.inner.ScheduleTimer(time.Duration(delay), fn)
}

// AssertOnLoop panics if called from a goroutine other than the one
// running Run. It is the thread-confinement check every Engine method
// that touches shared Backup state should open with, mirroring
// eventloop's own internal isLoopThread() check but expressed across
// the package boundary via goroutineid.
func (l *Loop) AssertOnLoop() {
	if !l.hasOwner.Load() {
		return
	}
	if gid := goroutineid.Get(); gid != l.ownerGID.Load() {
		panic(fmt.Sprintf("nodeloop: called from goroutine %d, loop owned by %d", gid, l.ownerGID.Load()))
	}
}
