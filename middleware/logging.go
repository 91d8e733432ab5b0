package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/shhac/nrpc/rpc"
)

// Logging logs the start and end of every call with a per-call id.
// Successful calls log at debug level, failures at error level.
func Logging(logger *slog.Logger) rpc.Middleware {
	return func(next rpc.Invoker) rpc.Invoker {
		return func(ctx context.Context, info rpc.CallInfo, input rpc.FrameStream) (rpc.FrameStream, error) {
			ctx, callID := ensureCallID(ctx)
			log := logger.With(
				slog.String("call_id", callID),
				slog.String("service", info.Descriptor()),
				slog.String("method", info.Method),
				slog.String("side", side(info)),
			)
			start := time.Now()
			log.Debug("call started")

			in := observe(input, nil, nil)
			out, err := next(ctx, info, in)
			if err != nil {
				log.Error("call failed",
					slog.String("outcome", outcome(err)),
					slog.Int64("frames_in", in.stats.Frames),
					slog.Duration("duration", time.Since(start)),
					slog.Any("error", err))
				return nil, err
			}

			return observe(out, nil, func(stats CallStats, err error) {
				attrs := []any{
					slog.String("outcome", outcome(err)),
					slog.Int64("frames_in", in.stats.Frames),
					slog.Int64("frames_out", stats.Frames),
					slog.Int64("bytes_out", stats.Bytes),
					slog.Duration("duration", time.Since(start)),
				}
				if err != nil {
					log.Error("call failed", append(attrs, slog.Any("error", err))...)
					return
				}
				log.Debug("call finished", attrs...)
			}), nil
		}
	}
}
