package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/apireg"
)

// LoggingInterceptor creates an interceptor that logs endpoint calls using slog.
// It logs the start and end of each call, including duration and error status.
func LoggingInterceptor(logger *slog.Logger) apireg.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx *apireg.Context, args []any, next apireg.Invoker) (any, error) {
		start := time.Now()
		info := ctx.Info()

		logger.InfoContext(ctx, "call started",
			slog.String("endpoint", info.Class+"."+info.Method),
			slog.Int("args", len(args)),
			slog.String("request_id", ctx.RequestID()),
		)

		res, err := next(ctx, args)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "call failed",
				slog.String("endpoint", info.Class+"."+info.Method),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "call completed",
				slog.String("endpoint", info.Class+"."+info.Method),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}
