package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the key/value logger passed through every layer.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New returns a text logger on stdout.
func New(level string) Logger {
	return NewWithWriter(os.Stdout, level, false)
}

// NewJSON returns a JSON logger on stdout, used in production.
func NewJSON(level string) Logger {
	return NewWithWriter(os.Stdout, level, true)
}

func NewWithWriter(w io.Writer, level string, asJSON bool) Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if asJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return &slogLogger{l: slog.New(h)}
}

// Nop discards everything. Handy in tests.
func Nop() Logger {
	return NewWithWriter(io.Discard, "error", false)
}

func (s *slogLogger) Debug(msg string, keysAndValues ...any) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *slogLogger) Info(msg string, keysAndValues ...any) {
	s.l.Info(msg, keysAndValues...)
}

func (s *slogLogger) Warn(msg string, keysAndValues ...any) {
	s.l.Warn(msg, keysAndValues...)
}

func (s *slogLogger) Error(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
}

func (s *slogLogger) Fatal(msg string, keysAndValues ...any) {
	s.l.Error(msg, keysAndValues...)
	os.Exit(1)
}

func (s *slogLogger) With(keysAndValues ...any) Logger {
	return &slogLogger{l: s.l.With(keysAndValues...)}
}

func parseLevel(level string) slog.Level {
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
