package grpctransport

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/shhac/nrpc/rpc"
)

var bidiDesc = &grpc.StreamDesc{ClientStreams: true, ServerStreams: true}

// ClientHandler implements rpc.ClientHandler over a gRPC connection.
type ClientHandler struct {
	conn     grpc.ClientConnInterface
	logger   *slog.Logger
	codec    grpc.CallOption
	callOpts []grpc.CallOption
}

// ClientOption configures a ClientHandler.
type ClientOption func(*ClientHandler)

// WithCompression compresses outgoing frames with the named compressor,
// for example Zstd.
func WithCompression(name string) ClientOption {
	return func(h *ClientHandler) {
		h.callOpts = append(h.callOpts, grpc.UseCompressor(name))
	}
}

// WithProtoWire sends frames with the standard "proto" content subtype
// instead of "nrpc", for servers that were not built with this package.
func WithProtoWire() ClientOption {
	return func(h *ClientHandler) {
		h.codec = grpc.ForceCodec(protoWire{})
	}
}

// WithCallOptions adds gRPC call options to every call.
func WithCallOptions(opts ...grpc.CallOption) ClientOption {
	return func(h *ClientHandler) {
		h.callOpts = append(h.callOpts, opts...)
	}
}

// NewClientHandler creates a handler that sends calls over conn.
func NewClientHandler(conn grpc.ClientConnInterface, logger *slog.Logger, opts ...ClientOption) *ClientHandler {
	h := &ClientHandler{
		conn:   conn,
		logger: logger,
		codec:  grpc.CallContentSubtype(Name),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.callOpts = append([]grpc.CallOption{h.codec}, h.callOpts...)
	return h
}

// Call opens a stream for the method and starts sending input in the
// background. The returned stream yields the server's frames. Callers that
// stop reading before the end should cancel ctx to release the stream.
func (h *ClientHandler) Call(ctx context.Context, pkg, service, method string, input rpc.FrameStream) (rpc.FrameStream, error) {
	ep := rpc.Endpoint{Package: pkg, Service: service, Method: method}
	ctx, cancel := context.WithCancelCause(ctx)

	h.logger.Debug("opening stream", slog.String("method", ep.FullMethod()))
	cs, err := h.conn.NewStream(ctx, bidiDesc, ep.FullMethod(), h.callOpts...)
	if err != nil {
		cancel(err)
		h.logger.Error("failed to open stream",
			slog.String("method", ep.FullMethod()),
			slog.Any("error", err))
		return nil, FromStatus(err)
	}

	go h.send(cs, input, cancel, ep)

	return &clientFrames{cs: cs, ctx: ctx, cancel: cancel}, nil
}

// send pumps input into the stream, then half-closes it.
func (h *ClientHandler) send(cs grpc.ClientStream, input rpc.FrameStream, cancel context.CancelCauseFunc, ep rpc.Endpoint) {
	sent := 0
	for {
		frame, err := input.Recv()
		if errors.Is(err, io.EOF) {
			if err := cs.CloseSend(); err != nil {
				h.logger.Debug("close send failed", slog.String("method", ep.FullMethod()), slog.Any("error", err))
			}
			return
		}
		if err != nil {
			h.logger.Debug("input stream failed",
				slog.String("method", ep.FullMethod()),
				slog.Int("sent", sent),
				slog.Any("error", err))
			cancel(err)
			return
		}
		if err := cs.SendMsg(&frame); err != nil {
			// io.EOF means the server already finished; RecvMsg reports why.
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("send failed", slog.String("method", ep.FullMethod()), slog.Any("error", err))
			}
			return
		}
		sent++
	}
}

// clientFrames reads server frames from a client stream.
type clientFrames struct {
	cs     grpc.ClientStream
	ctx    context.Context
	cancel context.CancelCauseFunc
	err    error
}

func (c *clientFrames) Recv() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	var frame []byte
	err := c.cs.RecvMsg(&frame)
	if err == nil {
		return frame, nil
	}

	if errors.Is(err, io.EOF) {
		c.err = io.EOF
	} else if cause := context.Cause(c.ctx); cause != nil && !errors.Is(cause, context.Canceled) && !errors.Is(cause, context.DeadlineExceeded) {
		// The call was torn down because the input stream failed.
		c.err = cause
	} else {
		c.err = FromStatus(err)
	}
	c.cancel(nil)
	return nil, c.err
}
