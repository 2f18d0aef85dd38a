package writerate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteReadyGatesOnPeriodQuota(t *testing.T) {
	t.Parallel()

	g := New(100, 40)
	require.True(t, g.WriteReady())

	g.RecordWrite(100)
	require.True(t, g.WriteReady(), "writing exactly the quota still permits the next check")

	g.RecordWrite(1)
	require.False(t, g.WriteReady(), "exceeding the quota blocks further writes this period")
}

func TestTickCarriesOverflowIntoNextPeriod(t *testing.T) {
	t.Parallel()

	g := New(100, 40)
	now := time.Now()

	// a single window that exactly fills the period does not itself
	// block further writes in that period (WriteReady is words <= quota).
	g.RecordWrite(100)
	require.True(t, g.WriteReady())

	now = now.Add(NominalTickPeriod)
	g.Tick(now)
	// overflow carried is min(prevOverflow, currSpeed+1) = min(0, 101) = 0,
	// since exactly-at-quota writes don't themselves overflow.
	require.True(t, g.WriteReady())

	g.RecordWrite(150) // 50 words over quota
	require.Equal(t, 50, g.overflowPrevPeriod)

	now = now.Add(NominalTickPeriod)
	g.Tick(now)
	require.Equal(t, 50, g.wordsThisPeriod)
	require.True(t, g.WriteReady(), "carried overflow alone is still under quota")

	g.RecordWrite(51)
	require.False(t, g.WriteReady(), "overflow plus a further write exceeds quota")
}

func TestTickDelayCompensatesJitterWithinTolerance(t *testing.T) {
	t.Parallel()

	g := New(100, 40)
	now := time.Now()
	g.lastTick = now

	// measured exactly nominal: no adjustment
	d := g.Tick(now.Add(NominalTickPeriod))
	require.Equal(t, NominalTickPeriod, d)

	// measured way late: adjustment clamped to -10ms (shrinks next delay)
	d = g.Tick(now.Add(NominalTickPeriod + 500*time.Millisecond))
	require.Equal(t, NominalTickPeriod-jitterTolerance, d)

	// measured way early: adjustment clamped to +10ms
	d = g.Tick(now.Add(10 * time.Millisecond))
	require.Equal(t, NominalTickPeriod+jitterTolerance, d)
}

func TestMonitorWindowReportsOverage(t *testing.T) {
	t.Parallel()

	var reports []Report
	g := New(100, 40, WithMonitorWindow(time.Second), WithReportFunc(func(r Report) {
		reports = append(reports, r)
	}))

	start := time.Now()
	g.windowStart = start
	g.RecordWrite(2000) // way above (100+10)*10 periods/sec budget

	g.checkMonitorWindowLocked(start.Add(time.Second))
	require.Len(t, reports, 1)
	require.Greater(t, reports[0].AverageWordsPerPeriod, reports[0].Limit)
}

func TestMonitorWindowClampsClockJump(t *testing.T) {
	t.Parallel()

	var reports []Report
	g := New(100, 40, WithMonitorWindow(time.Second), WithReportFunc(func(r Report) {
		reports = append(reports, r)
	}))
	start := time.Now()
	g.windowStart = start
	g.RecordWrite(100)

	// a large forward clock jump must not be propagated into the running
	// average uncorrected; elapsed is clamped to the nominal window.
	g.checkMonitorWindowLocked(start.Add(300 * time.Hour))
	require.Len(t, reports, 0, "100 words over a clamped 1s window is within tolerance")
}
