package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shhac/nrpc/rpc"
)

const instrumentationName = "github.com/shhac/nrpc"

// Tracing starts a span per call. The span ends when the output stream
// reaches its end or fails, or right away when the call itself fails.
// A nil tp uses the global tracer provider.
func Tracing(tp trace.TracerProvider) rpc.Middleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return func(next rpc.Invoker) rpc.Invoker {
		return func(ctx context.Context, info rpc.CallInfo, input rpc.FrameStream) (rpc.FrameStream, error) {
			kind := trace.SpanKindClient
			if info.Server {
				kind = trace.SpanKindServer
			}
			ctx, span := tracer.Start(ctx, fmt.Sprintf("nrpc/%s/%s", info.Descriptor(), info.Method),
				trace.WithSpanKind(kind),
				trace.WithAttributes(
					attribute.String("rpc.system", "nrpc"),
					attribute.String("rpc.service", info.Descriptor()),
					attribute.String("rpc.method", info.Method),
				),
			)
			if id, ok := CallID(ctx); ok {
				span.SetAttributes(attribute.String("rpc.nrpc.call_id", id))
			}

			in := observe(input, nil, nil)
			end := func(out CallStats, err error) {
				span.SetAttributes(
					attribute.Int64("rpc.nrpc.input_frames", in.stats.Frames),
					attribute.Int64("rpc.nrpc.input_bytes", in.stats.Bytes),
					attribute.Int64("rpc.nrpc.output_frames", out.Frames),
					attribute.Int64("rpc.nrpc.output_bytes", out.Bytes),
				)
				if err != nil {
					span.RecordError(err)
					span.SetAttributes(attribute.String("rpc.nrpc.outcome", outcome(err)))
					span.SetStatus(codes.Error, err.Error())
				} else {
					span.SetStatus(codes.Ok, "")
				}
				span.End()
			}

			out, err := next(ctx, info, in)
			if err != nil {
				end(CallStats{}, err)
				return nil, err
			}
			return observe(out, nil, end), nil
		}
	}
}
