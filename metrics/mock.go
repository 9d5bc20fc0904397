package metrics

import "sync"

// MockMetrics collects metrics that were registered and changed to allow tests
// to verify expected behavior
type MockMetrics struct {
	Registrations     map[string]Metadata
	CounterIncrements map[string]int
	GaugeRecords      map[string]float64
	Histograms        map[string][]float64
	UpdownIncrements  map[string]int
	Constants         map[string]float64

	lock sync.Mutex
}

var _ Metrics = (*MockMetrics)(nil)

// Start initializes all metrics or resets all metrics to zero
func (m *MockMetrics) Start() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Registrations = make(map[string]Metadata)
	m.CounterIncrements = make(map[string]int)
	m.GaugeRecords = make(map[string]float64)
	m.Histograms = make(map[string][]float64)
	m.UpdownIncrements = make(map[string]int)
	m.Constants = make(map[string]float64)
}

func (m *MockMetrics) Register(metadata Metadata) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Registrations[metadata.Name] = metadata
}

func (m *MockMetrics) Increment(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.CounterIncrements[name] += 1
}

func (m *MockMetrics) Gauge(name string, val interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.GaugeRecords[name] = ConvertNumeric(val)
}

func (m *MockMetrics) Count(name string, n interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.CounterIncrements[name] += int(ConvertNumeric(n))
}

func (m *MockMetrics) Histogram(name string, obs interface{}) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Histograms[name] = append(m.Histograms[name], ConvertNumeric(obs))
}

func (m *MockMetrics) Up(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.UpdownIncrements[name] += 1
}

func (m *MockMetrics) Down(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.UpdownIncrements[name] -= 1
}

func (m *MockMetrics) Get(name string) (float64, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if val, ok := m.GaugeRecords[name]; ok {
		return val, true
	}
	if val, ok := m.CounterIncrements[name]; ok {
		return float64(val), true
	}
	val, ok := m.Constants[name]
	return val, ok
}

func (m *MockMetrics) Store(name string, val float64) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.Constants[name] = val
}
