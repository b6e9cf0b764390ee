// Package logging provides a leveled, structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelInfo:
		return slog.LevelInfo
	default:
		// Above every level: drops everything.
		return slog.LevelError + 4
	}
}

// ParseLevel parses a log level string. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes key/value records through log/slog.
// The zero value is not usable; use New or Discard.
type Logger struct {
	mu     sync.Mutex
	level  *slog.LevelVar
	output io.Writer
	attrs  []any
	sl     *slog.Logger
}

// New creates a logger writing text records to stderr.
func New(level Level) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	l := &Logger{level: lv, output: os.Stderr}
	l.rebuild()
	return l
}

// Discard returns a logger that drops all output.
func Discard() *Logger {
	l := New(LevelError + 1)
	l.SetOutput(io.Discard)
	return l
}

func (l *Logger) rebuild() {
	h := slog.NewTextHandler(l.output, &slog.HandlerOptions{Level: l.level})
	l.sl = slog.New(h).With(l.attrs...)
}

// SetOutput sets the log output destination.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
	l.rebuild()
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level.slogLevel())
}

// With returns a child logger that adds kv to every record.
// The child shares the parent's level but not later SetOutput calls.
func (l *Logger) With(kv ...any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	attrs := make([]any, 0, len(l.attrs)+len(kv))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, kv...)

	child := &Logger{level: l.level, output: l.output, attrs: attrs}
	child.rebuild()
	return child
}

func (l *Logger) logger() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sl
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, kv ...any) {
	l.logger().Debug(msg, kv...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, kv ...any) {
	l.logger().Info(msg, kv...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, kv ...any) {
	l.logger().Warn(msg, kv...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, kv ...any) {
	l.logger().Error(msg, kv...)
}
