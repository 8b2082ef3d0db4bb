package logger

import (
	"context"
	"log/slog"
)

// contextKey is private so no other package can collide with it.
type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
// Middlewares use it to install a request-scoped logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default() when none is set.
// It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// With derives a child of the context logger enriched with args and stores it back.
// Services call it to tag everything logged further down a call chain
// (e.g. campaign_id during a dispatch).
func With(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}
