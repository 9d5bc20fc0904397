package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// FileConfig is a Config implementation backed by a YAML file on disk. The
// file is read once at Start and again on every Reload.
type FileConfig struct {
	Path string

	conf      *configContents
	callbacks []func()
	mux       sync.RWMutex
}

var _ Config = (*FileConfig)(nil)

// configContents is the on-disk shape of the config file.
type configContents struct {
	ListenAddr        string             `yaml:"ListenAddr" default:"0.0.0.0:8080"`
	Logger            string             `yaml:"Logger" default:"logrus"`
	LoggingLevel      Level              `yaml:"LoggingLevel"`
	Metrics           string             `yaml:"Metrics" default:"prometheus"`
	MetricsListenAddr string             `yaml:"MetricsListenAddr" default:"0.0.0.0:2112"`
	PubSub            string             `yaml:"PubSub" default:"local"`
	Redis             RedisPubSubConfig  `yaml:"Redis"`
	ReportingInterval float64            `yaml:"ReportingInterval" default:"1"`
	StreamIntervals   map[string]float64 `yaml:"StreamIntervals"`
	Smoother          SmootherConfig     `yaml:"Smoother"`
	OTelTracing       OTelTracingConfig  `yaml:"OTelTracing"`
}

func (f *FileConfig) Start() error {
	contents, err := f.load()
	if err != nil {
		return err
	}
	f.mux.Lock()
	f.conf = contents
	f.mux.Unlock()
	return nil
}

func (f *FileConfig) load() (*configContents, error) {
	contents := &configContents{}
	if err := defaults.Set(contents); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if f.Path != "" {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", f.Path, err)
		}
		if err := yaml.Unmarshal(data, contents); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", f.Path, err)
		}
	}
	if contents.LoggingLevel == UnknownLevel {
		contents.LoggingLevel = InfoLevel
	}
	if err := contents.validate(); err != nil {
		return nil, err
	}
	return contents, nil
}

func (c *configContents) validate() error {
	if c.Smoother.Weight <= 0 || c.Smoother.Weight > 1 {
		return fmt.Errorf("smoother weight must be in (0, 1], got %v", c.Smoother.Weight)
	}
	if c.Smoother.AdjustmentInterval <= 0 {
		return fmt.Errorf("smoother adjustment interval must be positive, got %v", c.Smoother.AdjustmentInterval)
	}
	return nil
}

func (f *FileConfig) Reload() error {
	contents, err := f.load()
	if err != nil {
		return err
	}
	f.mux.Lock()
	f.conf = contents
	callbacks := f.callbacks
	f.mux.Unlock()
	for _, cb := range callbacks {
		cb()
	}
	return nil
}

func (f *FileConfig) RegisterReloadCallback(cb func()) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.callbacks = append(f.callbacks, cb)
}

func (f *FileConfig) GetListenAddr() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.ListenAddr
}

func (f *FileConfig) GetLoggerType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.Logger
}

func (f *FileConfig) GetLoggerLevel() Level {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.LoggingLevel
}

func (f *FileConfig) GetMetricsType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.Metrics
}

func (f *FileConfig) GetMetricsListenAddr() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.MetricsListenAddr
}

func (f *FileConfig) GetPubSubType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.PubSub
}

func (f *FileConfig) GetRedisPubSubConfig() RedisPubSubConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.Redis
}

func (f *FileConfig) GetReportingInterval() float64 {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.ReportingInterval
}

// GetReportingIntervalForStream implements the submission-time lookup: an
// explicit per-stream value wins over the configured default.
func (f *FileConfig) GetReportingIntervalForStream(stream string) float64 {
	f.mux.RLock()
	defer f.mux.RUnlock()
	if interval, ok := f.conf.StreamIntervals[stream]; ok {
		return interval
	}
	return f.conf.ReportingInterval
}

func (f *FileConfig) GetSmootherConfig() SmootherConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.Smoother
}

func (f *FileConfig) GetOTelTracingConfig() OTelTracingConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.conf.OTelTracing
}
