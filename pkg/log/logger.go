// Package log provides structured logging for Pond components.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level represents the severity of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "DEBUG":
		return DebugLevel, nil
	case "info", "INFO", "":
		return InfoLevel, nil
	case "warn", "WARN", "warning":
		return WarnLevel, nil
	case "error", "ERROR":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// Field is one structured key/value attached to a log message.
type Field struct {
	Key   string
	Value any
}

// Str returns a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Uint64 returns a uint64 field.
func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err returns an error field under the "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component tags messages with the emitting component's name.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Logger is the logging interface passed between Pond components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that attaches fields to every message.
	With(fields ...Field) Logger

	// SetLevel sets the minimum level; messages below it are dropped.
	SetLevel(level Level)
}

// Format selects the output encoding.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// Option configures a logger.
type Option func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) Option {
	return func(o *options) { o.level = level }
}

// WithFormat selects text or JSON output.
func WithFormat(format Format) Option {
	return func(o *options) { o.format = format }
}

// WithWriter directs output somewhere other than stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

type baseLogger struct {
	sl    *slog.Logger
	level *atomic.Int64 // shared across With() children
}

// NewLogger builds a Logger writing to stderr unless configured otherwise.
func NewLogger(opts ...Option) Logger {
	o := options{level: InfoLevel, format: TextFormat, out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level := &atomic.Int64{}
	level.Store(int64(o.level))
	leveler := dynamicLevel{level: level}

	var handler slog.Handler
	switch o.format {
	case JSONFormat:
		handler = slog.NewJSONHandler(o.out, &slog.HandlerOptions{Level: leveler})
	default:
		handler = slog.NewTextHandler(o.out, &slog.HandlerOptions{Level: leveler})
	}
	return &baseLogger{sl: slog.New(handler), level: level}
}

// NewNop returns a logger that discards everything; useful in tests.
func NewNop() Logger {
	return NewLogger(WithWriter(io.Discard), WithLevel(ErrorLevel))
}

type dynamicLevel struct {
	level *atomic.Int64
}

func (d dynamicLevel) Level() slog.Level {
	return toSlogLevel(Level(d.level.Load()))
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func (b *baseLogger) Debug(msg string, fields ...Field) { b.sl.Debug(msg, attrs(fields)...) }
func (b *baseLogger) Info(msg string, fields ...Field)  { b.sl.Info(msg, attrs(fields)...) }
func (b *baseLogger) Warn(msg string, fields ...Field)  { b.sl.Warn(msg, attrs(fields)...) }
func (b *baseLogger) Error(msg string, fields ...Field) { b.sl.Error(msg, attrs(fields)...) }

func (b *baseLogger) With(fields ...Field) Logger {
	return &baseLogger{sl: b.sl.With(attrs(fields)...), level: b.level}
}

func (b *baseLogger) SetLevel(level Level) {
	b.level.Store(int64(level))
}
