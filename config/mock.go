package config

// MockConfig will respond with whatever config it's set to do during
// initialization
type MockConfig struct {
	ListenAddr        string
	LoggerType        string
	LoggerLevel       Level
	MetricsType       string
	MetricsListenAddr string
	PubSubType        string
	RedisPubSub       RedisPubSubConfig
	ReportingInterval float64
	StreamIntervals   map[string]float64
	Smoother          SmootherConfig
	OTelTracing       OTelTracingConfig
	ReloadErr         error
	Callbacks         []func()
}

var _ Config = (*MockConfig)(nil)

func (m *MockConfig) RegisterReloadCallback(cb func()) {
	m.Callbacks = append(m.Callbacks, cb)
}

func (m *MockConfig) Reload() error {
	for _, cb := range m.Callbacks {
		cb()
	}
	return m.ReloadErr
}

func (m *MockConfig) GetListenAddr() string                   { return m.ListenAddr }
func (m *MockConfig) GetLoggerType() string                   { return m.LoggerType }
func (m *MockConfig) GetLoggerLevel() Level                   { return m.LoggerLevel }
func (m *MockConfig) GetMetricsType() string                  { return m.MetricsType }
func (m *MockConfig) GetMetricsListenAddr() string            { return m.MetricsListenAddr }
func (m *MockConfig) GetPubSubType() string                   { return m.PubSubType }
func (m *MockConfig) GetRedisPubSubConfig() RedisPubSubConfig { return m.RedisPubSub }
func (m *MockConfig) GetReportingInterval() float64           { return m.ReportingInterval }

func (m *MockConfig) GetReportingIntervalForStream(stream string) float64 {
	if interval, ok := m.StreamIntervals[stream]; ok {
		return interval
	}
	return m.ReportingInterval
}

func (m *MockConfig) GetSmootherConfig() SmootherConfig       { return m.Smoother }
func (m *MockConfig) GetOTelTracingConfig() OTelTracingConfig { return m.OTelTracing }
