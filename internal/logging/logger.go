// Package logging provides the leveled log sink used by every controller.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Component tags.
const (
	TagSession = "Session"
	TagUsers   = "Users"
	TagCourses = "Courses"
	TagGateway = "Gateway"
	TagStorage = "Storage"
	TagForm    = "Form"
	TagRefresh = "Refresh"
	TagHTTP    = "HTTP"
)

// Sink receives leveled log lines tagged with the emitting component.
// args are slog-style key/value pairs or slog.Attr values.
type Sink interface {
	Debug(tag, msg string, args ...any)
	Info(tag, msg string, args ...any)
	Warn(tag, msg string, args ...any)
	Error(tag, msg string, args ...any)
}

// Logger is a Sink backed by log/slog.
type Logger struct {
	log *slog.Logger
}

// New builds a Logger writing to stdout. Development environments get the
// text handler; everything else gets JSON.
func New(env, level string) *Logger {
	return NewWithWriter(os.Stdout, env, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, env, level string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if env == "" || env == "development" || env == "local" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{log: slog.New(h)}
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(l *slog.Logger) *Logger {
	return &Logger{log: l}
}

// Slog exposes the underlying logger for libraries that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

func (l *Logger) Debug(tag, msg string, args ...any) {
	l.emit(slog.LevelDebug, tag, msg, args)
}

func (l *Logger) Info(tag, msg string, args ...any) {
	l.emit(slog.LevelInfo, tag, msg, args)
}

func (l *Logger) Warn(tag, msg string, args ...any) {
	l.emit(slog.LevelWarn, tag, msg, args)
}

func (l *Logger) Error(tag, msg string, args ...any) {
	l.emit(slog.LevelError, tag, msg, args)
}

func (l *Logger) emit(level slog.Level, tag, msg string, args []any) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, msg, append([]any{slog.String("tag", tag)}, args...)...)
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Err returns the "error" attribute for err.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

type nop struct{}

func (nop) Debug(string, string, ...any) {}
func (nop) Info(string, string, ...any)  {}
func (nop) Warn(string, string, ...any)  {}
func (nop) Error(string, string, ...any) {}

// Nop discards everything.
func Nop() Sink {
	return nop{}
}
