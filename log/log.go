// Package log is the structured logging layer of the execution engine,
// a thin wrapper around log/slog. Subsystems obtain child loggers via
// Module so every record carries its origin.
package log

import (
	"log/slog"
	"os"
	"sync/atomic"
)

// Logger emits structured records through an underlying slog.Logger.
type Logger struct {
	inner *slog.Logger
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(slog.LevelInfo))
}

// New returns a Logger writing JSON records to stderr, dropping anything
// below level.
func New(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	return NewWithHandler(slog.NewJSONHandler(os.Stderr, opts))
}

// NewWithHandler wraps an arbitrary slog.Handler, e.g. a test recorder.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// SetDefault replaces the process-wide logger used by the package-level
// functions and by Default. A nil argument is ignored.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// Module derives a child logger tagged with a "module" attribute naming
// the subsystem (vm, state, bridge, ...).
func (l *Logger) Module(name string) *Logger {
	return l.With("module", name)
}

// With derives a child logger carrying extra key-value context on every
// record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// Package-level forms log through the default logger.

func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
