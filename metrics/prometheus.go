package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/honeycombio/flowmeter/config"
	"github.com/honeycombio/flowmeter/logger"
)

// PromMetrics is a Metrics implementation that exposes everything on a
// prometheus scrape endpoint.
type PromMetrics struct {
	Config config.Config `inject:""`
	Logger logger.Logger `inject:""`

	// metrics keeps a record of all the registered metrics so we can set
	// them by name
	metrics map[string]interface{}
	values  map[string]float64
	lock    sync.RWMutex

	server *http.Server
	prefix string
}

var _ Metrics = (*PromMetrics)(nil)

func (p *PromMetrics) Start() error {
	p.Logger.Debug().Logf("Starting PromMetrics")
	defer func() { p.Logger.Debug().Logf("Finished starting PromMetrics") }()

	p.metrics = make(map[string]interface{})
	p.values = make(map[string]float64)

	muxxer := mux.NewRouter()
	muxxer.Handle("/metrics", promhttp.Handler())

	p.server = &http.Server{
		Addr:              p.Config.GetMetricsListenAddr(),
		Handler:           muxxer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			p.Logger.Error().WithField("error", err.Error()).Logf("prometheus metrics server failed")
		}
	}()
	return nil
}

func (p *PromMetrics) Stop() error {
	if p.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}

func (p *PromMetrics) Register(metadata Metadata) {
	p.lock.Lock()
	defer p.lock.Unlock()

	// don't attempt to add the metric again as this will cause a panic
	if _, exists := p.metrics[metadata.Name]; exists {
		return
	}

	var newmet interface{}
	switch metadata.Type {
	case Counter:
		newmet = promauto.NewCounter(prometheus.CounterOpts{
			Name:      metadata.Name,
			Namespace: p.prefix,
			Help:      metadata.Description,
		})
	case Gauge, UpDown:
		newmet = promauto.NewGauge(prometheus.GaugeOpts{
			Name:      metadata.Name,
			Namespace: p.prefix,
			Help:      metadata.Description,
		})
	case Histogram:
		newmet = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:      metadata.Name,
			Namespace: p.prefix,
			Help:      metadata.Description,
			// a usable set of buckets for a wide range of metrics:
			// 16 buckets, first upper bound of 1, each following upper bound 4x the previous
			Buckets: prometheus.ExponentialBuckets(1, 4, 16),
		})
	}

	p.metrics[metadata.Name] = newmet
}

func (p *PromMetrics) Increment(name string) {
	p.Count(name, 1)
}

func (p *PromMetrics) Count(name string, n interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if counter, ok := p.metrics[name].(prometheus.Counter); ok {
		counter.Add(ConvertNumeric(n))
		p.values[name] += ConvertNumeric(n)
	}
}

func (p *PromMetrics) Gauge(name string, val interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if gauge, ok := p.metrics[name].(prometheus.Gauge); ok {
		gauge.Set(ConvertNumeric(val))
		p.values[name] = ConvertNumeric(val)
	}
}

func (p *PromMetrics) Histogram(name string, obs interface{}) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if hist, ok := p.metrics[name].(prometheus.Histogram); ok {
		hist.Observe(ConvertNumeric(obs))
	}
}

func (p *PromMetrics) Up(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if gauge, ok := p.metrics[name].(prometheus.Gauge); ok {
		gauge.Inc()
		p.values[name]++
	}
}

func (p *PromMetrics) Down(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if gauge, ok := p.metrics[name].(prometheus.Gauge); ok {
		gauge.Dec()
		p.values[name]--
	}
}

func (p *PromMetrics) Get(name string) (float64, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	val, ok := p.values[name]
	return val, ok
}

func (p *PromMetrics) Store(name string, val float64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.values[name] = val
}
