package taskexec

import "go.uber.org/zap"

// Logger is the structured-logging seam the executor writes through. Its
// shape matches zap's SugaredLogger calling convention (message, then
// alternating key/value pairs) so NewZapLogger can wrap one directly, but
// any implementation works — the core package never imports zap itself
// outside of this adapter.
type Logger interface {
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger for use by an Executor or
// Group.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: l.Sugar()}
}

func (z *zapLogger) Info(msg string, kv ...interface{})  { z.l.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...interface{})  { z.l.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...interface{}) { z.l.Errorw(msg, kv...) }
