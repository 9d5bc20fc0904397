package config

import (
	"errors"
	"strings"
	"time"
)

// Config defines the interface the rest of the code uses to get items from the
// config. There are different implementations of the config using different
// backends to store the config.
type Config interface {
	// RegisterReloadCallback takes a function that will be called whenever the
	// configuration is reloaded. This will happen infrequently. If consumers
	// of configuration set config values on startup, they should check their
	// values haven't changed and re-start anything that needs restarting with
	// the new values.
	RegisterReloadCallback(callback func())

	// Reload forces the config to attempt to reload its values and invoke the
	// reload callbacks.
	Reload() error

	// GetListenAddr returns the address and port on which to listen for
	// incoming events.
	GetListenAddr() string

	// GetLoggerType returns the type of the logger to use. Valid types are in
	// the logger package.
	GetLoggerType() string

	// GetLoggerLevel returns the level of the logger to use.
	GetLoggerLevel() Level

	// GetMetricsType returns the type of metrics to use. Valid types are in
	// the metrics package.
	GetMetricsType() string

	// GetMetricsListenAddr returns the address and port the prometheus
	// metrics server should listen on.
	GetMetricsListenAddr() string

	// GetPubSubType returns the type of pubsub to use. Valid types are in the
	// pubsub package.
	GetPubSubType() string

	// GetRedisPubSubConfig returns the connection settings for the Redis
	// pubsub backend.
	GetRedisPubSubConfig() RedisPubSubConfig

	// GetReportingInterval returns the default desired wall-clock time
	// between throughput reports, in seconds. A value <= 0 disables
	// reporting.
	GetReportingInterval() float64

	// GetReportingIntervalForStream resolves the reporting interval for a
	// named stream: an explicit per-stream override if one exists, else the
	// default.
	GetReportingIntervalForStream(stream string) float64

	// GetSmootherConfig returns the config for the cluster throughput
	// smoother.
	GetSmootherConfig() SmootherConfig

	// GetOTelTracingConfig returns the config for exporting our own traces.
	GetOTelTracingConfig() OTelTracingConfig
}

// RedisPubSubConfig holds the connection settings for the Redis-backed pubsub.
type RedisPubSubConfig struct {
	Host           string `yaml:"Host" default:"localhost:6379"`
	Username       string `yaml:"Username"`
	Password       string `yaml:"Password"`
	Database       int    `yaml:"Database"`
	Prefix         string `yaml:"Prefix"`
	UseTLS         bool   `yaml:"UseTLS"`
	UseTLSInsecure bool   `yaml:"UseTLSInsecure"`
}

// SmootherConfig holds the settings for the EMA throughput smoother. Weight is
// the smoothing factor (0 < Weight <= 1); AdjustmentInterval is how often the
// EMA is recalculated from received reports.
type SmootherConfig struct {
	Enabled            bool     `yaml:"Enabled"`
	Weight             float64  `yaml:"Weight" default:"0.5"`
	AdjustmentInterval Duration `yaml:"AdjustmentInterval" default:"15s"`
}

// OTelTracingConfig holds the settings for exporting our own operational
// traces over OTLP.
type OTelTracingConfig struct {
	Enabled    bool    `yaml:"Enabled"`
	APIHost    string  `yaml:"APIHost" default:"https://api.honeycomb.io"`
	APIKey     string  `yaml:"APIKey"`
	Dataset    string  `yaml:"Dataset" default:"flowmeter"`
	SampleRate float64 `yaml:"SampleRate" default:"1"`
}

// Duration is a time.Duration that marshals to and from a string like "15s"
// so that durations read naturally in YAML.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

type Level int

const (
	UnknownLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	PanicLevel
)

func ParseLevel(s string) Level {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "panic":
		return PanicLevel
	default:
		return UnknownLevel
	}
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case PanicLevel:
		return "panic"
	default:
		return "unknown"
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	*l = ParseLevel(string(text))
	if *l == UnknownLevel {
		return errors.New("unknown logging level '" + string(text) + "'")
	}
	return nil
}
