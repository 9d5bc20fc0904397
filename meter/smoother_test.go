package meter

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
	"github.com/honeycombio/flowmeter/pubsub"
)

func newTestSmoother(t *testing.T) (*EMASmoother, *clockwork.FakeClock) {
	t.Helper()
	fakeClock := clockwork.NewFakeClock()
	smoother := &EMASmoother{
		Config:         &config.MockConfig{},
		Logger:         &logger.NullLogger{},
		Metrics:        &metrics.NullMetrics{},
		Clock:          fakeClock,
		enabled:        true,
		weight:         0.5,
		intervalLength: time.Second,
		reports:        make(map[string]map[string]peerReport),
		ema:            make(map[string]float64),
	}
	return smoother, fakeClock
}

func deliver(t *testing.T, s *EMASmoother, report Report) {
	t.Helper()
	msg, err := report.MarshalString()
	require.NoError(t, err)
	s.onReport(context.Background(), msg)
}

func TestSmootherEMA(t *testing.T) {
	smoother, _ := newTestSmoother(t)

	deliver(t, smoother, Report{Stream: "clicks", Host: "host-1", Throughput: 1000})
	smoother.updateEMA()

	// starting EMA is 0, so the first update lands at weight * current
	val, ok := smoother.SmoothedThroughput("clicks")
	require.True(t, ok)
	assert.Equal(t, 500.0, val)

	deliver(t, smoother, Report{Stream: "clicks", Host: "host-1", Throughput: 1000})
	smoother.updateEMA()

	val, ok = smoother.SmoothedThroughput("clicks")
	require.True(t, ok)
	assert.Equal(t, 750.0, val)
}

func TestSmootherSumsPeers(t *testing.T) {
	smoother, _ := newTestSmoother(t)

	deliver(t, smoother, Report{Stream: "clicks", Host: "host-1", Throughput: 200})
	deliver(t, smoother, Report{Stream: "clicks", Host: "host-2", Throughput: 300})
	smoother.updateEMA()

	val, ok := smoother.SmoothedThroughput("clicks")
	require.True(t, ok)
	assert.Equal(t, 250.0, val, "cluster throughput is the sum of all peers")
}

func TestSmootherStreamsAreIndependent(t *testing.T) {
	smoother, _ := newTestSmoother(t)

	deliver(t, smoother, Report{Stream: "clicks", Host: "host-1", Throughput: 1000})
	deliver(t, smoother, Report{Stream: "audit", Host: "host-1", Throughput: 10})
	smoother.updateEMA()

	clicks, ok := smoother.SmoothedThroughput("clicks")
	require.True(t, ok)
	audit, ok := smoother.SmoothedThroughput("audit")
	require.True(t, ok)
	assert.Equal(t, 500.0, clicks)
	assert.Equal(t, 5.0, audit)

	_, ok = smoother.SmoothedThroughput("nonexistent")
	assert.False(t, ok)
}

func TestSmootherPrunesStalePeers(t *testing.T) {
	smoother, fakeClock := newTestSmoother(t)

	deliver(t, smoother, Report{Stream: "clicks", Host: "host-1", Throughput: 400})
	smoother.updateEMA()

	// the peer goes quiet for more than two adjustment intervals
	fakeClock.Advance(3 * time.Second)
	smoother.updateEMA()

	_, ok := smoother.SmoothedThroughput("clicks")
	assert.False(t, ok, "a stream with no live peers should be forgotten")
}

func TestSmootherDisabled(t *testing.T) {
	smoother := &EMASmoother{
		Config:  &config.MockConfig{Smoother: config.SmootherConfig{Enabled: false}},
		Logger:  &logger.NullLogger{},
		Metrics: &metrics.NullMetrics{},
		Clock:   clockwork.NewFakeClock(),
		PubSub:  &pubsub.LocalPubSub{},
	}
	require.NoError(t, smoother.Start())
	defer smoother.Stop()

	_, ok := smoother.SmoothedThroughput("clicks")
	assert.False(t, ok)
}

func TestSmootherEndToEnd(t *testing.T) {
	ps := &pubsub.LocalPubSub{}
	require.NoError(t, ps.Start())
	defer ps.Stop()

	fakeClock := clockwork.NewFakeClock()
	smoother := &EMASmoother{
		Config: &config.MockConfig{Smoother: config.SmootherConfig{
			Enabled:            true,
			Weight:             0.5,
			AdjustmentInterval: config.Duration(time.Second),
		}},
		Logger:  &logger.NullLogger{},
		Metrics: &metrics.NullMetrics{},
		Clock:   fakeClock,
		PubSub:  ps,
	}
	require.NoError(t, smoother.Start())
	defer smoother.Stop()

	sink := &PubSubSink{PubSub: ps, Logger: &logger.NullLogger{}, Host: "host-1"}
	sink.Send(Report{Stream: "clicks", Throughput: 1000})

	// wait for the report to arrive via pubsub, then trigger an adjustment
	require.Eventually(t, func() bool {
		smoother.mut.RLock()
		defer smoother.mut.RUnlock()
		return len(smoother.reports["clicks"]) == 1
	}, time.Second, 5*time.Millisecond)

	smoother.updateEMA()

	val, ok := smoother.SmoothedThroughput("clicks")
	require.True(t, ok)
	assert.Equal(t, 500.0, val)
}
