package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithStr returns a context whose logger carries key=value on every entry,
// so callees that only see ctx log it too.
func WithStr(ctx context.Context, key, value string) context.Context {
	return WithLogger(ctx, Ctx(ctx).With().Str(key, value).Logger())
}

// Ctx returns the context logger, or the global one when ctx is nil or
// carries none.
func Ctx(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return L()
	}
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}
