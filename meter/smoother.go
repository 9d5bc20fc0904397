package meter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
	"github.com/honeycombio/flowmeter/pubsub"
)

var smootherMetrics = []metrics.Metadata{
	{Name: "smoothed_throughput", Type: metrics.Gauge, Unit: metrics.PerSecond, Description: "EMA of cluster-wide throughput across all streams"},
	{Name: "smoother_reports_received", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "Reports consumed by the smoother"},
}

// EMASmoother maintains an exponential moving average of reported throughput
// per stream, across every instance publishing on the report topic. Raw
// reports arrive at most once per reporting interval and cover windows of
// slightly varying length, so the smoother is what dashboards and downstream
// consumers should read instead of individual reports.
type EMASmoother struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:"metrics"`
	Clock   clockwork.Clock `inject:""`
	PubSub  pubsub.PubSub   `inject:""`

	weight         float64
	intervalLength time.Duration
	enabled        bool

	mut     sync.RWMutex
	reports map[string]map[string]peerReport // stream -> host -> latest report
	ema     map[string]float64
	done    chan struct{}
}

type peerReport struct {
	throughput float64
	received   time.Time
}

func (s *EMASmoother) Start() error {
	cfg := s.Config.GetSmootherConfig()
	s.enabled = cfg.Enabled
	if !s.enabled {
		return nil
	}

	s.weight = cfg.Weight
	if s.weight == 0 {
		s.weight = 0.5
	}
	s.intervalLength = time.Duration(cfg.AdjustmentInterval)
	if s.intervalLength == 0 {
		s.intervalLength = 15 * time.Second
	}

	s.reports = make(map[string]map[string]peerReport)
	s.ema = make(map[string]float64)
	s.done = make(chan struct{})

	for _, metric := range smootherMetrics {
		s.Metrics.Register(metric)
	}

	s.PubSub.Subscribe(context.Background(), ReportTopic, s.onReport)

	go func() {
		ticker := s.Clock.NewTicker(s.intervalLength)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.Chan():
				s.updateEMA()
			}
		}
	}()

	return nil
}

func (s *EMASmoother) Stop() error {
	if !s.enabled {
		return nil
	}
	close(s.done)
	return nil
}

func (s *EMASmoother) onReport(ctx context.Context, msg string) {
	report, err := UnmarshalReport(msg)
	if err != nil {
		s.Logger.Debug().Logf("dropping undecodable throughput report: %s", err)
		return
	}
	s.Metrics.Increment("smoother_reports_received")
	s.mut.Lock()
	if _, ok := s.reports[report.Stream]; !ok {
		s.reports[report.Stream] = make(map[string]peerReport)
	}
	s.reports[report.Stream][report.Host] = peerReport{
		throughput: report.Throughput,
		received:   s.Clock.Now(),
	}
	s.mut.Unlock()
}

// updateEMA folds the latest per-peer reports into each stream's moving
// average and drops peers that have gone quiet.
func (s *EMASmoother) updateEMA() {
	s.mut.Lock()
	defer s.mut.Unlock()

	var total float64
	for stream, peers := range s.reports {
		var current float64
		for host, report := range peers {
			// a peer that has missed two adjustment intervals is gone
			if s.Clock.Since(report.received) > s.intervalLength*2 {
				delete(peers, host)
				continue
			}
			current += report.throughput
		}
		if len(peers) == 0 {
			delete(s.reports, stream)
			delete(s.ema, stream)
			continue
		}
		s.ema[stream] = s.weight*current + (1-s.weight)*s.ema[stream]
		total += s.ema[stream]
	}
	s.Metrics.Gauge("smoothed_throughput", total)
}

// SmoothedThroughput returns the current cluster-wide EMA for a stream, in
// tuples per second. The second return is false if the stream is unknown or
// the smoother is disabled.
func (s *EMASmoother) SmoothedThroughput(stream string) (float64, bool) {
	if !s.enabled {
		return 0, false
	}
	s.mut.RLock()
	defer s.mut.RUnlock()
	val, ok := s.ema[stream]
	if !ok {
		return 0, false
	}
	// round to a practical precision so values are stable to compare and log
	return math.Round(val*1000) / 1000, true
}
