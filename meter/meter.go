package meter

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
)

// Meter is the per-stream measurement surface: one Tick per tuple.
type Meter interface {
	Tick()
}

var registryMetrics = []metrics.Metadata{
	{Name: "active_meters", Type: metrics.UpDown, Unit: metrics.Dimensionless, Description: "Number of streams currently being measured"},
}

// Registry creates and retains one meter per named stream, with common
// (injected) resources. The reporting interval for each stream is resolved at
// creation time: an explicit per-stream override from config wins, otherwise
// the configured default applies.
type Registry struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:"metrics"`
	Clock   clockwork.Clock `inject:""`
	Sink    ReportSink      `inject:"reportSink"`

	mut    sync.RWMutex
	meters map[string]Meter
}

func (r *Registry) Start() error {
	r.Logger.Debug().Logf("Starting meter Registry")
	defer func() { r.Logger.Debug().Logf("Finished starting meter Registry") }()
	for _, metric := range registryMetrics {
		r.Metrics.Register(metric)
	}
	r.mut.Lock()
	r.meters = make(map[string]Meter)
	r.mut.Unlock()
	return nil
}

// Get returns the meter for the named stream, creating it on first use. The
// returned meter is safe for concurrent Tick calls.
func (r *Registry) Get(stream string) (Meter, error) {
	r.mut.RLock()
	m, ok := r.meters[stream]
	r.mut.RUnlock()
	if ok {
		return m, nil
	}

	r.mut.Lock()
	defer r.mut.Unlock()
	// someone else may have created it while we weren't holding the lock
	if m, ok := r.meters[stream]; ok {
		return m, nil
	}

	interval := r.Config.GetReportingIntervalForStream(stream)
	counter := &AdaptiveIntervalCounter{
		Logger:          r.Logger,
		Clock:           r.Clock,
		Sink:            r.Sink,
		Stream:          stream,
		IntervalSeconds: interval,
	}
	if err := counter.Start(); err != nil {
		return nil, err
	}
	m = NewLockedCounter(counter)
	r.meters[stream] = m
	r.Metrics.Up("active_meters")
	r.Logger.Debug().WithFields(map[string]interface{}{
		"stream":           stream,
		"interval_seconds": interval,
	}).Logf("created meter for stream")
	return m, nil
}

// Streams returns the names of all streams with meters.
func (r *Registry) Streams() []string {
	r.mut.RLock()
	defer r.mut.RUnlock()
	streams := make([]string, 0, len(r.meters))
	for stream := range r.meters {
		streams = append(streams, stream)
	}
	return streams
}
