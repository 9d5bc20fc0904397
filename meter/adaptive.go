package meter

import (
	"math"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/flowmeter/logger"
)

const (
	// seedCheckInterval is the starting tuple-count threshold. It is small so
	// that the first timing check happens quickly and the controller can
	// start converging on the real rate.
	seedCheckInterval = 10

	// checkIntervalNever effectively turns timing checks off; the tuple
	// counter would have to wrap all the way around before another check
	// fired.
	checkIntervalNever = math.MaxUint64
)

// AdaptiveIntervalCounter measures the throughput of a stream of tuples
// without reading the clock on every tuple. It keeps a check interval (a
// tuple count) and only samples a timestamp when that many tuples have gone
// by, then retunes the interval so that timing checks land close to the
// configured reporting interval. A report is emitted whenever a check finds
// that at least the full reporting interval has elapsed, so reports are never
// more frequent than the target.
//
// The controller compares the elapsed time at each check against three bands
// around the target T:
//
//   - elapsed > T: the window ran long. Emit a report. If it ran very long
//     (> 11/8 T) also rescale the check interval from the observed rate.
//   - elapsed < 7/8 T: checks are firing much too often. Rescale the check
//     interval from the observed rate, but keep accumulating toward the next
//     report.
//   - otherwise: close enough. Change nothing, so a converged controller
//     doesn't oscillate.
//
// The rescale aims the next check at 8/9 of the target so that the check
// after it lands just past the target and produces a report.
//
// Tick must be called by a single goroutine at a time; wrap the counter in a
// LockedCounter when multiple producers feed one stream.
type AdaptiveIntervalCounter struct {
	Logger logger.Logger   `inject:""`
	Clock  clockwork.Clock `inject:""`
	Sink   ReportSink      `inject:"reportSink"`

	// Stream is the name of the stream being measured.
	Stream string
	// IntervalSeconds is the desired wall-clock time between reports. Zero or
	// negative disables reporting entirely.
	IntervalSeconds float64

	// targetInterval is IntervalSeconds in nanoseconds; immutable after Start.
	targetInterval int64
	checkInterval  uint64
	tupleCount     uint64
	checkCount     uint64
	lastTimestamp  int64
	initialized    bool
}

func (c *AdaptiveIntervalCounter) Start() error {
	if c.Logger == nil {
		c.Logger = &logger.NullLogger{}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Sink == nil {
		c.Sink = &LoggerSink{Logger: c.Logger}
	}
	c.targetInterval = int64(c.IntervalSeconds * float64(nanosPerSecond))
	c.checkInterval = seedCheckInterval
	c.tupleCount = 0
	c.checkCount = 0
	c.initialized = false
	c.Logger.Debug().WithFields(map[string]interface{}{
		"stream":           c.Stream,
		"interval_seconds": c.IntervalSeconds,
	}).Logf("started adaptive interval counter")
	return nil
}

const nanosPerSecond = int64(1e9)

// Tick records the arrival of one tuple. This is the hot path: it does two
// counter updates and a modulo, and only reads the clock when the check
// interval threshold is crossed.
func (c *AdaptiveIntervalCounter) Tick() {
	if !c.initialized {
		c.lastTimestamp = c.Clock.Now().UnixNano()
		c.initialized = true
	}
	c.tupleCount++
	if c.tupleCount%c.checkInterval == 0 {
		c.check()
	}
}

// check reads the clock and retunes the check interval, emitting a report if
// the reporting interval has elapsed.
func (c *AdaptiveIntervalCounter) check() {
	now := c.Clock.Now().UnixNano()
	delta := now - c.lastTimestamp
	c.checkCount++

	if c.targetInterval <= 0 {
		// reporting is disabled for this stream; turn checks off so the hot
		// path never reads the clock again
		c.checkInterval = checkIntervalNever
		return
	}

	switch {
	case delta > c.targetInterval:
		// the window ran long; if it ran very long the check interval is far
		// off the stream's rate, so rescale before reporting
		if delta*8 > c.targetInterval*11 {
			c.rescale(delta)
		}
		c.report(now, delta)
	case delta*8 < c.targetInterval*7:
		// checks are firing much more often than needed; rescale but let the
		// window keep accumulating until it reaches the target
		c.rescale(delta)
	default:
		// within the dead band; leave the interval alone to avoid thrashing
	}
}

// rescale recomputes the check interval from the observed rate
// (tupleCount/delta), aiming the next check at 8/9 of the target interval so
// the check after it lands just past the target.
func (c *AdaptiveIntervalCounter) rescale(delta int64) {
	if delta == 0 {
		// the clock didn't advance between samples, so there is no rate to
		// scale by; try again at the next check
		return
	}
	next := uint64(9 * float64(c.targetInterval) * float64(c.tupleCount) / 8 / float64(delta))
	if next < 1 {
		// an interval of 0 would stop checks forever; 1 checks on every tuple
		next = 1
	}
	c.checkInterval = next
}

func (c *AdaptiveIntervalCounter) report(now int64, delta int64) {
	elapsed := float64(delta) / float64(nanosPerSecond)
	c.Sink.Send(Report{
		Stream:         c.Stream,
		Throughput:     float64(c.tupleCount) / elapsed,
		TupleCount:     c.tupleCount,
		CheckCount:     c.checkCount,
		ElapsedSeconds: elapsed,
	})
	c.lastTimestamp = now
	c.tupleCount = 0
	c.checkCount = 0
}

// LockedCounter serializes Tick calls so that multiple producer goroutines
// can share one counter.
type LockedCounter struct {
	mut     sync.Mutex
	counter *AdaptiveIntervalCounter
}

func NewLockedCounter(counter *AdaptiveIntervalCounter) *LockedCounter {
	return &LockedCounter{counter: counter}
}

func (l *LockedCounter) Tick() {
	l.mut.Lock()
	l.counter.Tick()
	l.mut.Unlock()
}
