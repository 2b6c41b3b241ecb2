package logger

// Logger is the leveled logging capability used throughout this module.
// It keeps the teacher's DebugLogger shape (Debugf/Infof/Errorf) so tests
// and embedders can still inject a no-op implementation, but the default
// production implementation is backed by logrus instead of bare log.Printf
// formatting.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
