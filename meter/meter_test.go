package meter

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
)

func newTestRegistry(t *testing.T) (*Registry, *MockSink, *metrics.MockMetrics) {
	t.Helper()
	mockMetrics := &metrics.MockMetrics{}
	mockMetrics.Start()
	sink := &MockSink{}
	registry := &Registry{
		Config: &config.MockConfig{
			ReportingInterval: 5,
			StreamIntervals:   map[string]float64{"clicks": 0.5, "audit": 0},
		},
		Logger:  &logger.NullLogger{},
		Metrics: mockMetrics,
		Clock:   clockwork.NewFakeClock(),
		Sink:    sink,
	}
	require.NoError(t, registry.Start())
	return registry, sink, mockMetrics
}

func TestRegistryResolvesIntervals(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	m, err := registry.Get("clicks")
	require.NoError(t, err)
	assert.Equal(t, int64(5e8), m.(*LockedCounter).counter.targetInterval, "override applies")

	m, err = registry.Get("anything-else")
	require.NoError(t, err)
	assert.Equal(t, int64(5e9), m.(*LockedCounter).counter.targetInterval, "default applies")

	m, err = registry.Get("audit")
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.(*LockedCounter).counter.targetInterval, "explicit zero disables")
}

func TestRegistryReturnsSameMeter(t *testing.T) {
	registry, _, mockMetrics := newTestRegistry(t)

	first, err := registry.Get("clicks")
	require.NoError(t, err)
	second, err := registry.Get("clicks")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, mockMetrics.UpdownIncrements["active_meters"])
	assert.ElementsMatch(t, []string{"clicks"}, registry.Streams())
}

func TestRegistryMetersReport(t *testing.T) {
	registry, sink, _ := newTestRegistry(t)
	fakeClock := registry.Clock.(*clockwork.FakeClock)

	m, err := registry.Get("clicks")
	require.NoError(t, err)

	// 0.5s target, 1ms spacing: steady state reports every 625 tuples
	for i := 0; i < 5000; i++ {
		m.Tick()
		fakeClock.Advance(time.Millisecond)
	}

	require.NotZero(t, sink.Len())
	report, ok := sink.Last()
	require.True(t, ok)
	assert.Equal(t, "clicks", report.Stream)
	assert.InDelta(t, 1000.0, report.Throughput, 5.0)
}
