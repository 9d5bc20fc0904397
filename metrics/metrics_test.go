package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/config"
)

func TestGetMetricsImplementation(t *testing.T) {
	m, err := GetMetricsImplementation(&config.MockConfig{MetricsType: "prometheus"})
	require.NoError(t, err)
	assert.IsType(t, &PromMetrics{}, m)

	m, err = GetMetricsImplementation(&config.MockConfig{MetricsType: "none"})
	require.NoError(t, err)
	assert.IsType(t, &NullMetrics{}, m)

	_, err = GetMetricsImplementation(&config.MockConfig{MetricsType: "abacus"})
	assert.Error(t, err)
}

func TestConvertNumeric(t *testing.T) {
	assert.Equal(t, 3.0, ConvertNumeric(3))
	assert.Equal(t, 3.0, ConvertNumeric(uint64(3)))
	assert.Equal(t, 3.5, ConvertNumeric(3.5))
	assert.Equal(t, 1.0, ConvertNumeric(true))
	assert.Equal(t, 0.0, ConvertNumeric("not a number"))
}

func TestPrefixMetricName(t *testing.T) {
	assert.Equal(t, "flowmeter_reports", PrefixMetricName("flowmeter", "reports"))
	assert.Equal(t, "reports", PrefixMetricName("", "reports"))
}

func TestMockMetrics(t *testing.T) {
	m := &MockMetrics{}
	m.Start()

	m.Register(Metadata{Name: "tuples", Type: Counter, Unit: Dimensionless, Description: "tuples seen"})
	m.Count("tuples", 10)
	m.Increment("tuples")
	m.Gauge("throughput", 998.5)
	m.Histogram("elapsed", 0.9)
	m.Up("active_meters")

	assert.Equal(t, Counter, m.Registrations["tuples"].Type)
	assert.Equal(t, 11, m.CounterIncrements["tuples"])

	val, ok := m.Get("throughput")
	require.True(t, ok)
	assert.Equal(t, 998.5, val)

	assert.Equal(t, []float64{0.9}, m.Histograms["elapsed"])
	assert.Equal(t, 1, m.UpdownIncrements["active_meters"])
}
