// Package middleware provides call interceptors for nrpc: structured
// logging, Prometheus metrics and OpenTelemetry tracing. Each one wraps the
// frame streams of a call instead of draining them, so calls stay lazy.
package middleware

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/shhac/nrpc/rpc"
)

// CallStats counts the frames that crossed one side of a call.
type CallStats struct {
	Frames int64
	Bytes  int64
}

// observed wraps a frame stream, counting frames and reporting the first
// terminal result. A stream that is abandoned never reports.
type observed struct {
	src     rpc.FrameStream
	stats   CallStats
	onFrame func(size int)
	onDone  func(stats CallStats, err error)
	done    bool
}

func observe(src rpc.FrameStream, onFrame func(int), onDone func(CallStats, error)) *observed {
	return &observed{src: src, onFrame: onFrame, onDone: onDone}
}

func (o *observed) Recv() ([]byte, error) {
	frame, err := o.src.Recv()
	if err != nil {
		if !o.done {
			o.done = true
			if o.onDone != nil {
				if errors.Is(err, io.EOF) {
					o.onDone(o.stats, nil)
				} else {
					o.onDone(o.stats, err)
				}
			}
		}
		return frame, err
	}
	o.stats.Frames++
	o.stats.Bytes += int64(len(frame))
	if o.onFrame != nil {
		o.onFrame(len(frame))
	}
	return frame, nil
}

type callIDKey struct{}

// WithCallID returns ctx carrying id.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the call id stored in ctx, if any.
func CallID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callIDKey{}).(string)
	return id, ok
}

// ensureCallID reuses the call id already in ctx or creates a new one.
func ensureCallID(ctx context.Context) (context.Context, string) {
	if id, ok := CallID(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCallID(ctx, id), id
}

func side(info rpc.CallInfo) string {
	if info.Server {
		return "server"
	}
	return "client"
}

// outcome names the result of a call for labels and log fields.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if k := rpc.KindOf(err); k != 0 {
		return k.String()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "deadline_exceeded"
	}
	return "error"
}
