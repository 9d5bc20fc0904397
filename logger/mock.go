package logger

import (
	"fmt"
	"maps"
	"sync"

	"github.com/honeycombio/flowmeter/config"
)

// MockLogger retains every emitted event so that tests can verify what got
// logged.
type MockLogger struct {
	Events []*MockLoggerEvent
	mutex  sync.Mutex
}

var _ Logger = (*MockLogger)(nil)

type MockLoggerEvent struct {
	l      *MockLogger
	Level  config.Level
	Fields map[string]any
}

func (l *MockLogger) Debug() Entry {
	return &MockLoggerEvent{
		l:      l,
		Level:  config.DebugLevel,
		Fields: make(map[string]any),
	}
}

func (l *MockLogger) Info() Entry {
	return &MockLoggerEvent{
		l:      l,
		Level:  config.InfoLevel,
		Fields: make(map[string]any),
	}
}

func (l *MockLogger) Warn() Entry {
	return &MockLoggerEvent{
		l:      l,
		Level:  config.WarnLevel,
		Fields: make(map[string]any),
	}
}

func (l *MockLogger) Error() Entry {
	return &MockLoggerEvent{
		l:      l,
		Level:  config.ErrorLevel,
		Fields: make(map[string]any),
	}
}

func (l *MockLogger) SetLevel(level string) error {
	return nil
}

// EventsWithField returns the recorded events carrying the given field.
func (l *MockLogger) EventsWithField(key string) []*MockLoggerEvent {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	var events []*MockLoggerEvent
	for _, e := range l.Events {
		if _, ok := e.Fields[key]; ok {
			events = append(events, e)
		}
	}
	return events
}

func (e *MockLoggerEvent) WithField(key string, value any) Entry {
	e.Fields[key] = value

	return e
}

func (e *MockLoggerEvent) WithString(key string, value string) Entry {
	return e.WithField(key, value)
}

func (e *MockLoggerEvent) WithFields(fields map[string]any) Entry {
	maps.Copy(e.Fields, fields)

	return e
}

func (e *MockLoggerEvent) Logf(f string, args ...any) {
	e.Fields["msg"] = fmt.Sprintf(f, args...)
	e.l.mutex.Lock()
	e.l.Events = append(e.l.Events, e)
	e.l.mutex.Unlock()
}
