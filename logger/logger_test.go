package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeycombio/flowmeter/config"
)

func TestGetLoggerImplementation(t *testing.T) {
	l, err := GetLoggerImplementation(&config.MockConfig{LoggerType: "logrus"})
	require.NoError(t, err)
	assert.IsType(t, &LogrusLogger{}, l)

	l, err = GetLoggerImplementation(&config.MockConfig{LoggerType: "none"})
	require.NoError(t, err)
	assert.IsType(t, &NullLogger{}, l)

	_, err = GetLoggerImplementation(&config.MockConfig{LoggerType: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestLogrusLoggerSetLevel(t *testing.T) {
	l := &LogrusLogger{}
	require.NoError(t, l.SetLevel("debug"))
	require.NoError(t, l.Start())
	assert.Error(t, l.SetLevel("extremely-loud"))
}

func TestMockLoggerRecordsEvents(t *testing.T) {
	m := &MockLogger{}
	m.Info().WithField("stream", "clicks").Logf("got %d tuples", 10)
	m.Error().Logf("oops")

	require.Len(t, m.Events, 2)
	assert.Equal(t, config.InfoLevel, m.Events[0].Level)
	assert.Equal(t, "got 10 tuples", m.Events[0].Fields["msg"])
	assert.Len(t, m.EventsWithField("stream"), 1)
}
