// Package logging implements service.Logger on top of zap's
// SugaredLogger, giving every component structured, leveled output.
package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/sogos/paperlink/internal/domain/service"
)

// Logger wraps a zap.SugaredLogger to satisfy service.Logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

var _ service.Logger = (*Logger)(nil)

// New builds a production zap logger (JSON, info level by default).
func New() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		// Falling back to a no-op logger keeps callers from having to
		// handle construction failure; zap's own production config
		// practically never fails to build.
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewWithLevel builds a zap logger at the given level ("debug", "info",
// "warn", "error"); unrecognized levels fall back to info.
func NewWithLevel(level string) *Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *Logger) With(args ...any) service.Logger {
	return &Logger{sugar: l.sugar.With(args...)}
}

// WithContext is a no-op beyond returning l: paperlink carries no
// request-scoped trace/tenant IDs to pull out of ctx.
func (l *Logger) WithContext(ctx context.Context) service.Logger {
	return l
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
