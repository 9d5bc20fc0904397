package health

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/honeycombio/flowmeter/logger"
	"github.com/honeycombio/flowmeter/metrics"
)

// Subsystems register with an expected reporting interval and then call Ready
// periodically. A subsystem that stops reporting for longer than its timeout
// drags the whole process to not-alive; a subsystem that reports but says it
// isn't ready drags the process to not-ready while staying alive (useful
// during shutdown). The router answers /alive and /ready from this data.

// Recorder is the interface used by objects that want to record their own
// health status and make it available to the system.
type Recorder interface {
	Register(subsystem string, timeout time.Duration)
	Unregister(subsystem string)
	Ready(subsystem string, ready bool)
}

// Reporter is the interface used to read back the health status of the
// system.
type Reporter interface {
	IsAlive() bool
	IsReady() bool
}

var healthMetrics = []metrics.Metadata{
	{Name: "is_alive", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "Whether all subsystems are reporting in"},
	{Name: "is_ready", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "Whether all subsystems report ready"},
}

type Health struct {
	Clock   clockwork.Clock `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:"metrics"`

	mut      sync.RWMutex
	timeouts map[string]time.Duration
	lastSeen map[string]time.Time
	readies  map[string]bool
}

var (
	_ Recorder = (*Health)(nil)
	_ Reporter = (*Health)(nil)
)

func (h *Health) Start() error {
	// tolerate missing injections so the zero value is usable in tests
	if h.Clock == nil {
		h.Clock = clockwork.NewRealClock()
	}
	if h.Logger == nil {
		h.Logger = &logger.NullLogger{}
	}
	if h.Metrics == nil {
		h.Metrics = &metrics.NullMetrics{}
	}
	for _, metric := range healthMetrics {
		h.Metrics.Register(metric)
	}
	h.mut.Lock()
	h.timeouts = make(map[string]time.Duration)
	h.lastSeen = make(map[string]time.Time)
	h.readies = make(map[string]bool)
	h.mut.Unlock()
	return nil
}

func (h *Health) Stop() error {
	return nil
}

// Register a subsystem with the health system. The timeout is the maximum
// expected interval between the subsystem's Ready calls; the clock on that
// timeout only starts running at the first Ready call.
func (h *Health) Register(subsystem string, timeout time.Duration) {
	h.mut.Lock()
	defer h.mut.Unlock()
	h.timeouts[subsystem] = timeout
	h.readies[subsystem] = false
	h.Logger.Debug().WithFields(map[string]interface{}{
		"subsystem": subsystem,
		"timeout":   timeout,
	}).Logf("registered health subsystem")
}

// Unregister removes a subsystem; it no longer needs to report in, and any
// stray reports from it are ignored.
func (h *Health) Unregister(subsystem string) {
	h.mut.Lock()
	defer h.mut.Unlock()
	delete(h.timeouts, subsystem)
	delete(h.lastSeen, subsystem)
	delete(h.readies, subsystem)
}

// Ready is called by subsystems with a flag to indicate their readiness to
// receive traffic. Calling it also counts as proof of life.
func (h *Health) Ready(subsystem string, ready bool) {
	h.mut.Lock()
	defer h.mut.Unlock()
	if _, ok := h.timeouts[subsystem]; !ok {
		h.Logger.Error().WithString("subsystem", subsystem).Logf("Ready called for unregistered subsystem")
		return
	}
	if h.readies[subsystem] != ready {
		h.Logger.Info().WithFields(map[string]interface{}{
			"subsystem": subsystem,
			"ready":     ready,
		}).Logf("subsystem changing readiness")
	}
	h.readies[subsystem] = ready
	h.lastSeen[subsystem] = h.Clock.Now()
	h.Metrics.Gauge("is_ready", h.checkReady())
	h.Metrics.Gauge("is_alive", h.checkAlive())
}

// IsAlive returns true if all registered subsystems are reporting in.
func (h *Health) IsAlive() bool {
	h.mut.RLock()
	defer h.mut.RUnlock()
	return h.checkAlive()
}

// checkAlive must be called with the lock held.
func (h *Health) checkAlive() bool {
	for subsystem, timeout := range h.timeouts {
		seen, ok := h.lastSeen[subsystem]
		if !ok {
			// hasn't started reporting yet; not dead, just young
			continue
		}
		if h.Clock.Since(seen) > timeout {
			h.Logger.Error().WithString("subsystem", subsystem).Logf("subsystem dead due to timeout")
			return false
		}
	}
	return true
}

// IsReady returns true if all registered subsystems are ready.
func (h *Health) IsReady() bool {
	h.mut.RLock()
	defer h.mut.RUnlock()
	return h.checkReady()
}

// checkReady must be called with the lock held.
func (h *Health) checkReady() bool {
	if len(h.readies) == 0 {
		return false
	}
	if !h.checkAlive() {
		return false
	}
	for _, ready := range h.readies {
		if !ready {
			return false
		}
	}
	return true
}
