package meter

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/logger"
)

func newTestCounter(t *testing.T, intervalSeconds float64) (*AdaptiveIntervalCounter, *clockwork.FakeClock, *MockSink) {
	t.Helper()
	fakeClock := clockwork.NewFakeClock()
	sink := &MockSink{}
	counter := &AdaptiveIntervalCounter{
		Logger:          &logger.NullLogger{},
		Clock:           fakeClock,
		Sink:            sink,
		Stream:          "test-stream",
		IntervalSeconds: intervalSeconds,
	}
	require.NoError(t, counter.Start())
	return counter, fakeClock, sink
}

// run delivers n events with a constant inter-event spacing. The first event
// arrives at the clock's current time.
func run(counter *AdaptiveIntervalCounter, clock *clockwork.FakeClock, n int, spacing time.Duration) {
	for i := 0; i < n; i++ {
		counter.Tick()
		clock.Advance(spacing)
	}
}

func TestDisabledNeverReports(t *testing.T) {
	for _, interval := range []float64{0, -1} {
		counter, fakeClock, sink := newTestCounter(t, interval)

		run(counter, fakeClock, 10000, time.Millisecond)

		assert.Zero(t, sink.Len(), "disabled counter must never report")
		assert.Equal(t, uint64(checkIntervalNever), counter.checkInterval,
			"disabled counter should stop checking after the first check")
	}
}

func TestSeedCheckRescalesImmediately(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)

	// ten events 1ms apart: the seed check fires at tuple 10 with 9ms
	// elapsed, far below 7/8 of the 1s target
	run(counter, fakeClock, 10, time.Millisecond)

	// 9 * 1e9 * 10 / 8 / 9e6 = 1250
	assert.Equal(t, uint64(1250), counter.checkInterval)
	assert.Zero(t, sink.Len(), "undershoot must not produce a report")
	assert.Equal(t, uint64(10), counter.tupleCount, "undershoot must not reset counters")
	assert.Equal(t, uint64(1), counter.checkCount)
}

func TestConvergenceAtConstantRate(t *testing.T) {
	// 1000 events/sec against a 1s reporting target
	counter, fakeClock, sink := newTestCounter(t, 1)

	run(counter, fakeClock, 10000, time.Millisecond)

	require.GreaterOrEqual(t, sink.Len(), 3)

	// the first report happens at the first check past the target: tuple
	// 1250, 1249ms after the first event
	first := sink.Reports[0]
	assert.Equal(t, uint64(1250), first.TupleCount)
	assert.Equal(t, uint64(2), first.CheckCount, "seed check plus reporting check")
	assert.InDelta(t, 1.249, first.ElapsedSeconds, 0.0001)
	assert.InDelta(t, 1000.8, first.Throughput, 0.1)

	// from the second report on the controller is in steady state: every
	// 1250 tuples, exactly 1.25s apart, throughput exactly 1000
	for _, report := range sink.Reports[1:] {
		assert.Equal(t, uint64(1250), report.TupleCount)
		assert.Equal(t, uint64(1), report.CheckCount)
		assert.InDelta(t, 1.25, report.ElapsedSeconds, 0.0001)
		assert.InDelta(t, 1000.0, report.Throughput, 0.01)
	}
}

func TestNoThrashingOnceConverged(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)

	run(counter, fakeClock, 5000, time.Millisecond)
	require.GreaterOrEqual(t, sink.Len(), 2)
	converged := counter.checkInterval

	run(counter, fakeClock, 10000, time.Millisecond)

	assert.Equal(t, converged, counter.checkInterval,
		"check interval must hold steady while the rate is constant")
}

func TestReportElapsedNeverBelowTarget(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)

	// an awkward spacing that doesn't divide the target evenly
	run(counter, fakeClock, 50000, 137*time.Microsecond)

	require.NotZero(t, sink.Len())
	for _, report := range sink.Reports {
		assert.Greater(t, report.ElapsedSeconds, 1.0,
			"reports may only fire once the full target interval has elapsed")
	}
}

func TestAdaptsToRateIncrease(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)

	// converge at 1000 events/sec
	run(counter, fakeClock, 5000, time.Millisecond)
	require.GreaterOrEqual(t, sink.Len(), 2)
	before := sink.Len()

	// the stream abruptly gets 10x faster
	run(counter, fakeClock, 100000, 100*time.Microsecond)

	reports := sink.Reports[before:]
	require.GreaterOrEqual(t, len(reports), 3)

	// re-convergence is quick: by the second post-change report the
	// throughput reading is correct and the check interval has scaled with
	// the rate
	for _, report := range reports[1:] {
		assert.InDelta(t, 10000.0, report.Throughput, 50.0)
	}
	// the check interval scaled roughly 10x from its converged 1250
	assert.InDelta(t, 11250, float64(counter.checkInterval), 150)

	// no report's window ran away during the transition
	for _, report := range reports {
		assert.Less(t, report.ElapsedSeconds, 11.0/8.0+0.01)
	}
}

func TestAdaptsToRateDecrease(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)

	run(counter, fakeClock, 5000, time.Millisecond)
	require.GreaterOrEqual(t, sink.Len(), 2)
	before := sink.Len()

	// the stream slows down 10x; the in-flight window runs long, which is
	// the one transient overshoot
	run(counter, fakeClock, 10000, 10*time.Millisecond)

	reports := sink.Reports[before:]
	require.GreaterOrEqual(t, len(reports), 3)
	for _, report := range reports[1:] {
		assert.InDelta(t, 100.0, report.Throughput, 1.0)
		assert.Less(t, report.ElapsedSeconds, 11.0/8.0+0.01)
	}
}

func TestRescaleClampsToOne(t *testing.T) {
	// a degenerate target far below the event spacing truncates the rescale
	// to zero, which must clamp to 1
	counter, fakeClock, sink := newTestCounter(t, 1e-9)

	run(counter, fakeClock, 10, time.Second)

	assert.Equal(t, uint64(1), counter.checkInterval)
	require.Equal(t, 1, sink.Len(), "a severe overshoot still reports")
	report, ok := sink.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(10), report.TupleCount)
	assert.Zero(t, counter.tupleCount, "report must reset the tuple count")
	assert.Zero(t, counter.checkCount, "report must reset the check count")
}

func TestZeroElapsedSkipsRescale(t *testing.T) {
	counter, _, sink := newTestCounter(t, 1)

	// the clock never advances, so no check can measure a rate
	for i := 0; i < 30; i++ {
		counter.Tick()
	}

	assert.Equal(t, uint64(seedCheckInterval), counter.checkInterval,
		"a zero elapsed time must leave the check interval unchanged")
	assert.Equal(t, uint64(3), counter.checkCount)
	assert.Zero(t, sink.Len())
}

func TestLockedCounterCountsEveryTick(t *testing.T) {
	counter, fakeClock, sink := newTestCounter(t, 1)
	locked := NewLockedCounter(counter)

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			for i := 0; i < 1000; i++ {
				locked.Tick()
			}
			done <- struct{}{}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	// no time passed, so nothing was reported and every tick was counted
	assert.Zero(t, sink.Len())
	assert.Equal(t, uint64(4000), counter.tupleCount)
	_ = fakeClock
}
