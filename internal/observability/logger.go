package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

type Logger struct {
	base *slog.Logger
}

// NewLogger writes JSON lines to stdout. Unknown levels fall back to info.
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

func NewLoggerTo(w io.Writer, level string) *Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return &Logger{base: slog.New(handler)}
}

// NewDiscardLogger drops everything. Useful for tests.
func NewDiscardLogger() *Logger {
	return &Logger{base: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))}
}

func (l *Logger) Debug(message string, fields map[string]any) {
	l.write(slog.LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(slog.LevelError, message, fields)
}

func (l *Logger) write(level slog.Level, message string, fields map[string]any) {
	if l == nil || l.base == nil {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	l.base.LogAttrs(context.Background(), level, message, attrs...)
}
