package meter

import (
	"context"
	"sync"

	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
	"github.com/honeycombio/flowmeter/pubsub"
)

// ReportSink receives throughput reports as counters emit them. Send is
// called from the counter's check path, so implementations should be quick
// about it.
type ReportSink interface {
	Send(report Report)
}

// LoggerSink writes one structured log line per report.
type LoggerSink struct {
	Logger logger.Logger `inject:""`
}

var _ ReportSink = (*LoggerSink)(nil)

func (s *LoggerSink) Send(report Report) {
	s.Logger.Info().WithFields(map[string]interface{}{
		"stream":          report.Stream,
		"throughput":      report.Throughput,
		"tuple_count":     report.TupleCount,
		"check_count":     report.CheckCount,
		"elapsed_seconds": report.ElapsedSeconds,
	}).Logf("stream throughput report")
}

var sinkMetrics = []metrics.Metadata{
	{Name: "reports_emitted", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Number of throughput reports emitted"},
	{Name: "report_throughput", Type: metrics.Gauge, Unit: metrics.PerSecond, Description: "Throughput from the most recent report"},
	{Name: "report_tuples", Type: metrics.Histogram, Unit: metrics.Dimensionless, Description: "Tuples covered by each report"},
	{Name: "report_elapsed", Type: metrics.Histogram, Unit: metrics.Seconds, Description: "Wall-clock window covered by each report"},
}

// MetricsSink publishes each report to the metrics system.
type MetricsSink struct {
	Metrics metrics.Metrics `inject:"metrics"`
}

var _ ReportSink = (*MetricsSink)(nil)

func (s *MetricsSink) Start() error {
	for _, metric := range sinkMetrics {
		s.Metrics.Register(metric)
	}
	return nil
}

func (s *MetricsSink) Send(report Report) {
	s.Metrics.Increment("reports_emitted")
	s.Metrics.Gauge("report_throughput", report.Throughput)
	s.Metrics.Histogram("report_tuples", report.TupleCount)
	s.Metrics.Histogram("report_elapsed", report.ElapsedSeconds)
}

// PubSubSink shares each report with local subscribers and peer instances by
// publishing it on the report topic.
type PubSubSink struct {
	PubSub pubsub.PubSub `inject:""`
	Logger logger.Logger `inject:""`

	// Host identifies this instance in published reports.
	Host string
}

var _ ReportSink = (*PubSubSink)(nil)

func (s *PubSubSink) Send(report Report) {
	report.Host = s.Host
	msg, err := report.MarshalString()
	if err != nil {
		s.Logger.Error().WithString("stream", report.Stream).Logf("failed to marshal throughput report: %s", err)
		return
	}
	if err := s.PubSub.Publish(context.Background(), ReportTopic, msg); err != nil {
		s.Logger.Error().WithString("stream", report.Stream).Logf("failed to publish throughput report: %s", err)
	}
}

// MultiSink fans each report out to several sinks.
type MultiSink struct {
	Sinks []ReportSink
}

var _ ReportSink = (*MultiSink)(nil)

func (s *MultiSink) Send(report Report) {
	for _, sink := range s.Sinks {
		sink.Send(report)
	}
}

// MockSink retains every report so tests can inspect them.
type MockSink struct {
	mut     sync.Mutex
	Reports []Report
}

var _ ReportSink = (*MockSink)(nil)

func (s *MockSink) Send(report Report) {
	s.mut.Lock()
	s.Reports = append(s.Reports, report)
	s.mut.Unlock()
}

func (s *MockSink) Len() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return len(s.Reports)
}

func (s *MockSink) Last() (Report, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if len(s.Reports) == 0 {
		return Report{}, false
	}
	return s.Reports[len(s.Reports)-1], true
}
