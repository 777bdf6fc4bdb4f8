package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel represents an enumeration of log levels
type LogLevel int

const (
	Critical LogLevel = 50
	Fatal    LogLevel = Critical
	Error    LogLevel = 40
	Warning  LogLevel = 30
	Info     LogLevel = 20
	Debug    LogLevel = 10
	NotSet   LogLevel = 0
)

// ParseLogLevel maps a level name to a LogLevel. Unknown names return Warning.
func ParseLogLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Warning
	}
}

// DefaultLogLevel reads LOG_LEVEL, with LOCAL=true forcing debug output.
func DefaultLogLevel() LogLevel {
	local := strings.ToLower(os.Getenv("LOCAL"))
	if local == "true" || local == "1" {
		return Debug
	}
	return ParseLogLevel(os.Getenv("LOG_LEVEL"))
}

func (l LogLevel) slogLevel() slog.Level {
	switch {
	case l >= Error:
		return slog.LevelError
	case l >= Warning:
		return slog.LevelWarn
	case l >= Info:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Logger provides structured logging with a component name.
// Key/value pairs are redacted before they are written.
type Logger struct {
	prefix string
	level  *slog.LevelVar
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string, logLevel ...LogLevel) *Logger {
	logLevelValue := DefaultLogLevel()
	if len(logLevel) > 0 {
		logLevelValue = logLevel[0]
	}
	l := &Logger{
		prefix: prefix,
		level:  new(slog.LevelVar),
	}
	l.level.Set(logLevelValue.slogLevel())
	l.SetOutput(os.Stdout)
	return l
}

// SetOutput redirects the logger to w.
func (l *Logger) SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level})
	l.mu.Lock()
	l.logger = slog.New(handler).With("component", l.prefix)
	l.mu.Unlock()
}

// SetLogLevel sets the logging level
func (l *Logger) SetLogLevel(logLevel LogLevel) {
	l.level.Set(logLevel.slogLevel())
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(slog.LevelInfo, msg, keyvals)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(slog.LevelError, msg, keyvals)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(slog.LevelWarn, msg, keyvals)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(slog.LevelDebug, msg, keyvals)
}

func (l *Logger) log(level slog.Level, msg string, keyvals []interface{}) {
	l.mu.RLock()
	logger := l.logger
	l.mu.RUnlock()

	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, RedactKeyvals(keyvals)...)
}
