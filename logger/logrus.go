package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger is a Logger implementation that sends all logs to stdout using
// the Logrus package to get nice formatting
type LogrusLogger struct {
	logger *logrus.Logger
	level  *logrus.Level
}

var _ Logger = (*LogrusLogger)(nil)

type LogrusEntry struct {
	entry *logrus.Entry
	level logrus.Level
}

func (l *LogrusLogger) Start() error {
	l.logger = logrus.New()
	if l.level != nil {
		l.logger.SetLevel(*l.level)
	}
	return nil
}

func (l *LogrusLogger) Debug() Entry {
	return &LogrusEntry{
		entry: logrus.NewEntry(l.logger),
		level: logrus.DebugLevel,
	}
}

func (l *LogrusLogger) Info() Entry {
	return &LogrusEntry{
		entry: logrus.NewEntry(l.logger),
		level: logrus.InfoLevel,
	}
}

func (l *LogrusLogger) Warn() Entry {
	return &LogrusEntry{
		entry: logrus.NewEntry(l.logger),
		level: logrus.WarnLevel,
	}
}

func (l *LogrusLogger) Error() Entry {
	return &LogrusEntry{
		entry: logrus.NewEntry(l.logger),
		level: logrus.ErrorLevel,
	}
}

func (l *LogrusLogger) SetLevel(level string) error {
	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	// record the choice and set it if we're already initialized
	l.level = &logrusLevel
	if l.logger != nil {
		l.logger.SetLevel(logrusLevel)
	}
	return nil
}

func (e *LogrusEntry) WithField(key string, value interface{}) Entry {
	return &LogrusEntry{
		entry: e.entry.WithField(key, value),
		level: e.level,
	}
}

func (e *LogrusEntry) WithString(key string, value string) Entry {
	return e.WithField(key, value)
}

func (e *LogrusEntry) WithFields(fields map[string]interface{}) Entry {
	return &LogrusEntry{
		entry: e.entry.WithFields(fields),
		level: e.level,
	}
}

func (e *LogrusEntry) Logf(f string, args ...interface{}) {
	switch e.level {
	case logrus.DebugLevel:
		e.entry.Debugf(f, args...)
	case logrus.InfoLevel:
		e.entry.Infof(f, args...)
	case logrus.WarnLevel:
		e.entry.Warnf(f, args...)
	default:
		e.entry.Errorf(f, args...)
	}
}
