package video_uploader

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// WithLogger attaches a logger that Uploader operations called with ctx will use.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached with WithLogger, or the global zap logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.L()
}
