package rpc

import (
	"context"
	"errors"
	"io"

	"github.com/shhac/nrpc/stream"
)

// EncodeStream lazily encodes each value of s. An encode failure at position
// i ends the stream with an Encode error for i. Failures from s itself pass
// through unchanged.
func EncodeStream[T any](s stream.Stream[T], codec Codec[T]) FrameStream {
	return stream.Map(s, func(i int, v T) ([]byte, error) {
		frame, err := codec.Encode(v)
		if err != nil {
			return nil, EncodeError(i, err)
		}
		return frame, nil
	})
}

// DecodeStream lazily decodes each frame of s. A decode failure at position
// i ends the stream with a Decode error for i. Failures from s itself pass
// through unchanged.
func DecodeStream[T any](s FrameStream, codec Codec[T]) stream.Stream[T] {
	return stream.Map(s, func(i int, frame []byte) (T, error) {
		v, err := codec.Decode(frame)
		if err != nil {
			var zero T
			return zero, DecodeError(i, err)
		}
		return v, nil
	})
}

// single pulls the only frame of a nominally single-item side.
// Zero frames is StreamLength{1, 0}; a surplus frame is StreamLength{1, 2}.
func single(s FrameStream) ([]byte, error) {
	frame, err := s.Recv()
	if errors.Is(err, io.EOF) {
		return nil, StreamLengthError(1, 0)
	}
	if err != nil {
		return nil, err
	}
	_, err = s.Recv()
	switch {
	case errors.Is(err, io.EOF):
		return frame, nil
	case err != nil:
		return nil, err
	default:
		return nil, StreamLengthError(1, 2)
	}
}

func decodeSingle[T any](s FrameStream, codec Codec[T]) (T, error) {
	var zero T
	frame, err := single(s)
	if err != nil {
		return zero, err
	}
	v, err := codec.Decode(frame)
	if err != nil {
		return zero, DecodeError(0, err)
	}
	return v, nil
}

func encodeOnce[T any](v T, codec Codec[T]) (FrameStream, error) {
	frame, err := codec.Encode(v)
	if err != nil {
		return nil, EncodeError(0, err)
	}
	return stream.Once(frame), nil
}

// methodErrStream tags failures of a user-produced stream as Method errors.
type methodErrStream[T any] struct{ src stream.Stream[T] }

func (m methodErrStream[T]) Recv() (T, error) {
	v, err := m.src.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		return v, MethodError(err)
	}
	return v, err
}

func userStream[T any](s stream.Stream[T]) stream.Stream[T] {
	if s == nil {
		return stream.Empty[T]()
	}
	return methodErrStream[T]{src: s}
}

// ServeUnary runs a 1 → 1 handler over a frame stream.
func ServeUnary[In, Out any](ctx context.Context, input FrameStream, in Codec[In], out Codec[Out], fn func(context.Context, In) (Out, error)) (FrameStream, error) {
	req, err := decodeSingle(input, in)
	if err != nil {
		return nil, err
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, MethodError(err)
	}
	return encodeOnce(resp, out)
}

// ServeClientStream runs a many → 1 handler. The handler receives a lazily
// decoded view of input.
func ServeClientStream[In, Out any](ctx context.Context, input FrameStream, in Codec[In], out Codec[Out], fn func(context.Context, stream.Stream[In]) (Out, error)) (FrameStream, error) {
	resp, err := fn(ctx, DecodeStream(input, in))
	if err != nil {
		return nil, MethodError(err)
	}
	return encodeOnce(resp, out)
}

// ServeServerStream runs a 1 → many handler. The returned stream encodes the
// handler's output as it is pulled.
func ServeServerStream[In, Out any](ctx context.Context, input FrameStream, in Codec[In], out Codec[Out], fn func(context.Context, In) (stream.Stream[Out], error)) (FrameStream, error) {
	req, err := decodeSingle(input, in)
	if err != nil {
		return nil, err
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, MethodError(err)
	}
	return EncodeStream(userStream(resp), out), nil
}

// ServeBidi runs a many → many handler. Neither side is buffered.
func ServeBidi[In, Out any](ctx context.Context, input FrameStream, in Codec[In], out Codec[Out], fn func(context.Context, stream.Stream[In]) (stream.Stream[Out], error)) (FrameStream, error) {
	resp, err := fn(ctx, DecodeStream(input, in))
	if err != nil {
		return nil, MethodError(err)
	}
	return EncodeStream(userStream(resp), out), nil
}

// CallUnary performs a 1 → 1 call through h.
func CallUnary[In, Out any](ctx context.Context, h ClientHandler, ep Endpoint, in Codec[In], out Codec[Out], req In) (Out, error) {
	var zero Out
	frames, err := encodeOnce(req, in)
	if err != nil {
		return zero, err
	}
	resp, err := h.Call(ctx, ep.Package, ep.Service, ep.Method, frames)
	if err != nil {
		return zero, err
	}
	return decodeSingle(resp, out)
}

// CallClientStream performs a many → 1 call. reqs is encoded as the
// transport pulls it.
func CallClientStream[In, Out any](ctx context.Context, h ClientHandler, ep Endpoint, in Codec[In], out Codec[Out], reqs stream.Stream[In]) (Out, error) {
	var zero Out
	resp, err := h.Call(ctx, ep.Package, ep.Service, ep.Method, EncodeStream(reqs, in))
	if err != nil {
		return zero, err
	}
	return decodeSingle(resp, out)
}

// CallServerStream performs a 1 → many call. Responses are decoded as the
// caller pulls them.
func CallServerStream[In, Out any](ctx context.Context, h ClientHandler, ep Endpoint, in Codec[In], out Codec[Out], req In) (stream.Stream[Out], error) {
	frames, err := encodeOnce(req, in)
	if err != nil {
		return nil, err
	}
	resp, err := h.Call(ctx, ep.Package, ep.Service, ep.Method, frames)
	if err != nil {
		return nil, err
	}
	return DecodeStream(resp, out), nil
}

// CallBidi performs a many → many call.
func CallBidi[In, Out any](ctx context.Context, h ClientHandler, ep Endpoint, in Codec[In], out Codec[Out], reqs stream.Stream[In]) (stream.Stream[Out], error) {
	resp, err := h.Call(ctx, ep.Package, ep.Service, ep.Method, EncodeStream(reqs, in))
	if err != nil {
		return nil, err
	}
	return DecodeStream(resp, out), nil
}
