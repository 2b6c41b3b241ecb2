package logger

import (
	"github.com/sirupsen/logrus"
)

// NullLogger discards everything. Useful in tests that don't want to
// assert on log output.
type NullLogger struct{}

func (l *NullLogger) Debugf(format string, args ...interface{}) {}
func (l *NullLogger) Infof(format string, args ...interface{})  {}
func (l *NullLogger) Errorf(format string, args ...interface{}) {}

// LogrusLogger adapts a *logrus.Logger to the Logger interface. This is the default logger used by the node runtime
// outside of tests.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a LogrusLogger from a *logrus.Logger, tagging
// every line with component="dht" so log aggregation can filter on it.
func NewLogrusLogger(base *logrus.Logger) *LogrusLogger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: base.WithField("component", "dht")}
}

func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
