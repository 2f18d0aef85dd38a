package nodeloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l, err := New()
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
	return l, cancel
}

func TestSubmitRunsOnLoopGoroutine(t *testing.T) {
	t.Parallel()

	l, _ := runLoop(t)

	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestContinueFiresAfterYieldDelay(t *testing.T) {
	t.Parallel()

	l, _ := runLoop(t)

	start := time.Now()
	done := make(chan time.Duration, 1)
	require.NoError(t, l.Continue(Yield50ms, func() {
		done <- time.Since(start)
	}))

	select {
	case elapsed := <-done:
		require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never fired")
	}
}

func TestContinueYieldNoneRunsImmediately(t *testing.T) {
	t.Parallel()

	l, _ := runLoop(t)

	done := make(chan struct{})
	require.NoError(t, l.Continue(YieldNone, func() {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("immediate continuation never fired")
	}
}
