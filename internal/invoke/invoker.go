// Package invoke calls methods known only by descriptor, converting between
// JSON and protobuf on the fly.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	apperrors "github.com/shhac/nrpc/internal/errors"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/stream"
)

// Invoker handles dynamic invocations over any client handler, for all four
// call shapes, without generated code.
type Invoker struct {
	handler rpc.ClientHandler
	logger  *slog.Logger

	unmarshal protojson.UnmarshalOptions
	marshal   protojson.MarshalOptions
}

// NewInvoker creates an invoker sending calls through h.
func NewInvoker(h rpc.ClientHandler, logger *slog.Logger) *Invoker {
	return &Invoker{
		handler: h,
		logger:  logger,
		marshal: protojson.MarshalOptions{EmitUnpopulated: true},
	}
}

// Invoke calls md with the given JSON requests and returns the responses as
// JSON. Methods that do not stream their input take exactly one request.
// Requests are parsed as the transport pulls them, so a malformed request
// surfaces as an error after earlier ones were sent.
func (i *Invoker) Invoke(ctx context.Context, md protoreflect.MethodDescriptor, requests []json.RawMessage, headers metadata.MD) (stream.Stream[json.RawMessage], error) {
	ep := endpointOf(md)
	card := rpc.CardinalityOf(md.IsStreamingClient(), md.IsStreamingServer())
	if len(headers) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, headers)
	}

	i.logger.Debug("invoking method",
		slog.String("method", ep.String()),
		slog.String("shape", card.String()),
		slog.Int("requests", len(requests)))

	in := rpc.NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(md.Input()) })
	out := rpc.NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(md.Output()) })

	if !card.IsClientStreaming() && len(requests) != 1 {
		return nil, rpc.StreamLengthError(1, min(len(requests), 2))
	}

	switch card {
	case rpc.Unary:
		req, err := i.parse(md, 0, requests[0])
		if err != nil {
			return nil, err
		}
		resp, err := rpc.CallUnary(ctx, i.handler, ep, in, out, req)
		if err != nil {
			return nil, err
		}
		return i.single(resp)

	case rpc.ClientStreaming:
		resp, err := rpc.CallClientStream(ctx, i.handler, ep, in, out, i.requests(md, requests))
		if err != nil {
			return nil, err
		}
		return i.single(resp)

	case rpc.ServerStreaming:
		req, err := i.parse(md, 0, requests[0])
		if err != nil {
			return nil, err
		}
		resps, err := rpc.CallServerStream(ctx, i.handler, ep, in, out, req)
		if err != nil {
			return nil, err
		}
		return i.responses(resps), nil

	default:
		resps, err := rpc.CallBidi(ctx, i.handler, ep, in, out, i.requests(md, requests))
		if err != nil {
			return nil, err
		}
		return i.responses(resps), nil
	}
}

func (i *Invoker) parse(md protoreflect.MethodDescriptor, index int, raw json.RawMessage) (*dynamicpb.Message, error) {
	msg := dynamicpb.NewMessage(md.Input())
	if err := i.unmarshal.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: request %d for %s: %v", apperrors.ErrInvalidInput, index, md.Input().FullName(), err)
	}
	i.logger.Debug("sending request", slog.Int("index", index), slog.String("body", truncateForLog(string(raw))))
	return msg, nil
}

func (i *Invoker) requests(md protoreflect.MethodDescriptor, raw []json.RawMessage) stream.Stream[*dynamicpb.Message] {
	return stream.Map(stream.FromSlice(raw), func(index int, r json.RawMessage) (*dynamicpb.Message, error) {
		return i.parse(md, index, r)
	})
}

func (i *Invoker) single(resp *dynamicpb.Message) (stream.Stream[json.RawMessage], error) {
	b, err := i.format(0, resp)
	if err != nil {
		return nil, err
	}
	return stream.Once(b), nil
}

func (i *Invoker) responses(s stream.Stream[*dynamicpb.Message]) stream.Stream[json.RawMessage] {
	return stream.Map(s, i.format)
}

func (i *Invoker) format(index int, m *dynamicpb.Message) (json.RawMessage, error) {
	b, err := i.marshal.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("format response: %w", err)
	}
	i.logger.Debug("received response", slog.Int("index", index), slog.String("body", truncateForLog(string(b))))
	return json.RawMessage(b), nil
}

func endpointOf(md protoreflect.MethodDescriptor) rpc.Endpoint {
	sd := md.Parent().(protoreflect.ServiceDescriptor)
	return rpc.Endpoint{
		Package: string(sd.ParentFile().Package()),
		Service: string(sd.Name()),
		Method:  string(md.Name()),
	}
}

// SplitRequests reads a sequence of JSON values, such as several objects
// separated by whitespace or newlines.
func SplitRequests(r io.Reader) ([]json.RawMessage, error) {
	dec := json.NewDecoder(r)
	var out []json.RawMessage
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: request %d: %v", apperrors.ErrInvalidInput, len(out), err)
		}
		out = append(out, bytes.TrimSpace(raw))
	}
}
