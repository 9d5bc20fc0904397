package metrics

import (
	"fmt"

	"github.com/honeycombio/flowmeter/config"
)

type MetricType int

const (
	Counter MetricType = iota
	Gauge
	Histogram
	UpDown
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case UpDown:
		return "updown"
	default:
		return "unknown"
	}
}

// Units are the SI-ish unit names we attach to metric descriptions.
const (
	Dimensionless = "dimensionless"
	Seconds       = "seconds"
	PerSecond     = "per_second"
)

// Metadata describes a metric so that implementations can register it with
// their backend before it is used.
type Metadata struct {
	Name        string
	Type        MetricType
	Unit        string
	Description string
}

// Metrics is the interface for setting metric values. All metrics must be
// registered with their metadata before use; unregistered names are silently
// dropped.
type Metrics interface {
	Register(metadata Metadata)
	Increment(name string)                  // for counters
	Gauge(name string, val interface{})     // for gauges
	Count(name string, n interface{})       // for counters
	Histogram(name string, obs interface{}) // for histograms
	Up(name string)                         // for updown counters
	Down(name string)                       // for updown counters
	Get(name string) (float64, bool)        // for reading back a counter or a gauge
	Store(name string, val float64)         // for storing a rarely-changing value not sent as a metric
}

// GetMetricsImplementation returns the metrics implementation the config asks
// for.
func GetMetricsImplementation(c config.Config) (Metrics, error) {
	switch c.GetMetricsType() {
	case "prometheus":
		return &PromMetrics{}, nil
	case "none":
		return &NullMetrics{}, nil
	default:
		return nil, fmt.Errorf("unknown metrics type %s", c.GetMetricsType())
	}
}

func ConvertNumeric(val interface{}) float64 {
	switch n := val.(type) {
	case int:
		return float64(n)
	case uint:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case int32:
		return float64(n)
	case uint32:
		return float64(n)
	case int16:
		return float64(n)
	case uint16:
		return float64(n)
	case int8:
		return float64(n)
	case uint8:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func PrefixMetricName(prefix string, name string) string {
	if prefix != "" {
		return fmt.Sprintf(`%s_%s`, prefix, name)
	}
	return name
}
