package core

import (
	"fmt"
	"log"
	"os"
	"time"
)

// LogLevel represents the severity of a log record.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the wire-friendly name of the level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Field is a structured key/value attached to a log record.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the structured logging surface used throughout the core.
// Every package that can observe a transient external failure (plugin
// load, watcher error, resolution miss) logs through this interface
// instead of propagating it, per the core's error-handling policy.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	// With returns a derived logger that prepends the given fields to
	// every record it emits, so a project or watcher can tag its whole
	// output with e.g. the project name without repeating it at each
	// call site.
	With(fields ...Field) Logger
}

// DefaultLogger is a plain-text Logger backed by the standard log package.
type DefaultLogger struct {
	level  LogLevel
	logger *log.Logger
	base   []Field
}

// NewDefaultLogger creates a logger writing to stdout at the given level.
func NewDefaultLogger(level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		logger: log.New(os.Stdout, "", 0),
	}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.emit(DebugLevel, msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.emit(InfoLevel, msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.emit(WarnLevel, msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.emit(ErrorLevel, msg, fields) }

// Fatal logs at FatalLevel and terminates the process.
func (l *DefaultLogger) Fatal(msg string, fields ...Field) {
	l.emit(FatalLevel, msg, fields)
	os.Exit(1)
}

// With returns a child logger that always includes the given fields.
func (l *DefaultLogger) With(fields ...Field) Logger {
	child := &DefaultLogger{level: l.level, logger: l.logger}
	child.base = append(append([]Field{}, l.base...), fields...)
	return child
}

func (l *DefaultLogger) emit(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	line := fmt.Sprintf("[%s] %s %s", level.String(), timestamp, msg)

	all := append(append([]Field{}, l.base...), fields...)
	if len(all) > 0 {
		line += " |"
		for _, f := range all {
			line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
		}
	}
	l.logger.Println(line)
}

// SetLevel changes the minimum level the logger emits.
func (l *DefaultLogger) SetLevel(level LogLevel) { l.level = level }

// GetLevel returns the logger's current minimum level.
func (l *DefaultLogger) GetLevel() LogLevel { return l.level }

// NoopLogger discards every record; useful in tests that don't assert on logs.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...Field)    {}
func (NoopLogger) Info(string, ...Field)     {}
func (NoopLogger) Warn(string, ...Field)     {}
func (NoopLogger) Error(string, ...Field)    {}
func (NoopLogger) Fatal(string, ...Field)    {}
func (n NoopLogger) With(...Field) Logger    { return n }

// Field constructors.

func StringField(key, value string) Field { return Field{Key: key, Value: value} }
func IntField(key string, value int) Field { return Field{Key: key, Value: value} }
func BoolField(key string, value bool) Field { return Field{Key: key, Value: value} }
func ErrorField(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}
func DurationField(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}
