package grpctransport

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shhac/nrpc/rpc"
)

// ServerOption returns a gRPC server option that routes every call the
// server has no registered service for to h. Pass an *rpc.Router to serve
// all of its services.
func ServerOption(h rpc.ClientHandler, logger *slog.Logger) grpc.ServerOption {
	return grpc.UnknownServiceHandler(func(_ any, ss grpc.ServerStream) error {
		fullMethod, ok := grpc.MethodFromServerStream(ss)
		if !ok {
			return status.Error(codes.Internal, "no method in stream context")
		}
		ep, ok := rpc.ParseFullMethod(fullMethod)
		if !ok {
			return status.Errorf(codes.Unimplemented, "malformed method name %q", fullMethod)
		}
		return serveStream(ss, ep, logger, func(ctx context.Context, input rpc.FrameStream) (rpc.FrameStream, error) {
			return h.Call(ctx, ep.Package, ep.Service, ep.Method, input)
		})
	})
}

// NewServer creates a gRPC server that serves every service known to h.
func NewServer(h rpc.ClientHandler, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(append(opts, ServerOption(h, logger))...)
}

// MethodLister is a service that can enumerate its methods, such as
// *rpc.Dispatcher.
type MethodLister interface {
	rpc.ServerService
	Methods() []rpc.Method
}

// RegisterService registers svc with a real service description, so it
// shows up in GetServiceInfo and server reflection.
func RegisterService(reg grpc.ServiceRegistrar, svc MethodLister, logger *slog.Logger) {
	pkg, name := rpc.SplitDescriptor(svc.Descriptor())
	desc := &grpc.ServiceDesc{
		ServiceName: svc.Descriptor(),
		HandlerType: (*rpc.ServerService)(nil),
	}
	for _, m := range svc.Methods() {
		ep := rpc.Endpoint{Package: pkg, Service: name, Method: m.Name}
		desc.Streams = append(desc.Streams, grpc.StreamDesc{
			StreamName:    m.Name,
			ServerStreams: true,
			ClientStreams: true,
			Handler: func(srv any, ss grpc.ServerStream) error {
				target := srv.(rpc.ServerService)
				return serveStream(ss, ep, logger, func(ctx context.Context, input rpc.FrameStream) (rpc.FrameStream, error) {
					return target.Call(ctx, ep.Method, input)
				})
			},
		})
	}
	reg.RegisterService(desc, svc)
}

// serveStream runs one call and pumps its output back to the client.
// Output is pulled one frame at a time, so input is read only as fast as the
// handler asks for it.
func serveStream(ss grpc.ServerStream, ep rpc.Endpoint, logger *slog.Logger, call func(context.Context, rpc.FrameStream) (rpc.FrameStream, error)) error {
	out, err := call(ss.Context(), &serverFrames{ss: ss})
	if err != nil {
		logger.Debug("call rejected",
			slog.String("method", ep.FullMethod()),
			slog.Any("error", err))
		return ToStatus(err).Err()
	}

	sent := 0
	for {
		frame, err := out.Recv()
		if errors.Is(err, io.EOF) {
			logger.Debug("call finished",
				slog.String("method", ep.FullMethod()),
				slog.Int("frames_out", sent))
			return nil
		}
		if err != nil {
			logger.Debug("output stream failed",
				slog.String("method", ep.FullMethod()),
				slog.Int("frames_out", sent),
				slog.Any("error", err))
			return ToStatus(err).Err()
		}
		if err := ss.SendMsg(&frame); err != nil {
			return err
		}
		sent++
	}
}

// serverFrames reads client frames from a server stream.
type serverFrames struct {
	ss  grpc.ServerStream
	err error
}

func (s *serverFrames) Recv() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	var frame []byte
	if err := s.ss.RecvMsg(&frame); err != nil {
		s.err = err
		return nil, err
	}
	return frame, nil
}
