package logger

import (
	"fmt"

	"github.com/honeycombio/flowmeter/config"
)

// Logger is the interface used by the rest of the code to emit log events.
// Choose a level, add fields, then call Logf to emit the event.
type Logger interface {
	Debug() Entry
	Info() Entry
	Warn() Entry
	Error() Entry
	// SetLevel sets the logging level (debug, info, warn, error)
	SetLevel(level string) error
}

type Entry interface {
	WithField(key string, value interface{}) Entry
	WithString(key string, value string) Entry
	WithFields(fields map[string]interface{}) Entry

	Logf(f string, args ...interface{})
}

// GetLoggerImplementation returns the logger implementation the config asks
// for. It falls back to the null logger for unknown types.
func GetLoggerImplementation(c config.Config) (Logger, error) {
	switch c.GetLoggerType() {
	case "logrus":
		return &LogrusLogger{}, nil
	case "none":
		return &NullLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown logger type %s", c.GetLoggerType())
	}
}
