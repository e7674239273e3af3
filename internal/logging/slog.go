package logging

import (
	"context"
	"io"
	"log/slog"
)

// Environment names understood by New.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// New builds a slog-backed logger for the given environment: text at debug
// level for local runs, JSON at debug for dev and JSON at info for prod.
// Unknown values fall back to prod.
func New(env string, w io.Writer) *SlogLogger {
	var h slog.Handler
	switch env {
	case EnvLocal:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	case EnvDev:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return NewSlogLogger(slog.New(h))
}

// Err is a shorthand for the "error" attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
