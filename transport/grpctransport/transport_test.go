package grpctransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/shhac/nrpc/internal/greeter"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/stream"
)

var codec = rpc.ProtoCodec[*wrapperspb.StringValue]()

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestService() *rpc.Dispatcher {
	return rpc.NewDispatcher("test.Words",
		rpc.UnaryMethod("upper", codec, codec,
			func(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
				return wrapperspb.String(strings.ToUpper(req.GetValue())), nil
			}),
		rpc.ClientStreamMethod("join", codec, codec,
			func(_ context.Context, reqs stream.Stream[*wrapperspb.StringValue]) (*wrapperspb.StringValue, error) {
				items, err := stream.Collect(reqs)
				if err != nil {
					return nil, err
				}
				parts := make([]string, len(items))
				for i, v := range items {
					parts[i] = v.GetValue()
				}
				return wrapperspb.String(strings.Join(parts, " ")), nil
			}),
		rpc.ServerStreamMethod("split", codec, codec,
			func(_ context.Context, req *wrapperspb.StringValue) (stream.Stream[*wrapperspb.StringValue], error) {
				fields := strings.Fields(req.GetValue())
				return stream.Map(stream.FromSlice(fields), func(_ int, s string) (*wrapperspb.StringValue, error) {
					return wrapperspb.String(s), nil
				}), nil
			}),
		rpc.BidiMethod("echo", codec, codec,
			func(_ context.Context, reqs stream.Stream[*wrapperspb.StringValue]) (stream.Stream[*wrapperspb.StringValue], error) {
				return reqs, nil
			}),
		rpc.UnaryMethod("denied", codec, codec,
			func(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
				return nil, status.Error(codes.PermissionDenied, "not for you")
			}),
	)
}

// startServer serves a router over an in-memory listener and returns a
// connected client handler.
func startServer(t *testing.T, opts ...ClientOption) *ClientHandler {
	t.Helper()
	router := rpc.NewRouter(nopLogger())
	require.NoError(t, router.Register(newTestService()))

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(router, nopLogger())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return dial(t, lis, opts...)
}

func dial(t *testing.T, lis *bufconn.Listener, opts ...ClientOption) *ClientHandler {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClientHandler(conn, nopLogger(), opts...)
}

func words(method string) rpc.Endpoint {
	return rpc.Endpoint{Package: "test", Service: "Words", Method: method}
}

func strs(vals ...string) stream.Stream[*wrapperspb.StringValue] {
	items := make([]*wrapperspb.StringValue, len(vals))
	for i, v := range vals {
		items[i] = wrapperspb.String(v)
	}
	return stream.FromSlice(items)
}

func collect(t *testing.T, s stream.Stream[*wrapperspb.StringValue]) []string {
	t.Helper()
	items, err := stream.Collect(s)
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, v := range items {
		out[i] = v.GetValue()
	}
	return out
}

func TestTransport_AllShapes(t *testing.T) {
	tests := []struct {
		name string
		opts []ClientOption
	}{
		{name: "plain"},
		{name: "zstd", opts: []ClientOption{WithCompression(Zstd)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startServer(t, tt.opts...)
			ctx := context.Background()

			resp, err := rpc.CallUnary(ctx, h, words("upper"), codec, codec, wrapperspb.String("grpc"))
			require.NoError(t, err)
			assert.Equal(t, "GRPC", resp.GetValue())

			resp, err = rpc.CallClientStream(ctx, h, words("join"), codec, codec, strs("a", "b", "c"))
			require.NoError(t, err)
			assert.Equal(t, "a b c", resp.GetValue())

			out, err := rpc.CallServerStream(ctx, h, words("split"), codec, codec, wrapperspb.String("one two three"))
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two", "three"}, collect(t, out))

			out, err = rpc.CallBidi(ctx, h, words("echo"), codec, codec, strs("x", "y", "z"))
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "y", "z"}, collect(t, out))
		})
	}
}

func TestTransport_ErrorsKeepTheirKind(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	t.Run("service not found", func(t *testing.T) {
		_, err := rpc.CallUnary(ctx, h, rpc.Endpoint{Package: "test", Service: "Nope", Method: "upper"}, codec, codec, wrapperspb.String("x"))
		assert.ErrorIs(t, err, rpc.ErrServiceNotFound)
	})

	t.Run("method not found", func(t *testing.T) {
		_, err := rpc.CallUnary(ctx, h, words("nope"), codec, codec, wrapperspb.String("x"))
		var se *rpc.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, rpc.KindMethodNotFound, se.Kind)
		assert.Equal(t, "nope", se.Method)
	})

	t.Run("unary without input", func(t *testing.T) {
		out, err := h.Call(ctx, "test", "Words", "upper", stream.Empty[[]byte]())
		require.NoError(t, err)
		_, err = out.Recv()
		var se *rpc.ServiceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, rpc.KindStreamLength, se.Kind)
		assert.Equal(t, 1, se.Want)
		assert.Equal(t, 0, se.Got)
	})

	t.Run("method error", func(t *testing.T) {
		_, err := rpc.CallUnary(ctx, h, words("denied"), codec, codec, wrapperspb.String("x"))
		assert.ErrorIs(t, err, rpc.ErrMethod)
		assert.Contains(t, err.Error(), "not for you")
	})
}

func TestTransport_InputFailureCancelsCall(t *testing.T) {
	h := startServer(t)
	boom := errors.New("input broke")

	sent := false
	input := stream.Func(func() (*wrapperspb.StringValue, error) {
		if sent {
			return nil, boom
		}
		sent = true
		return wrapperspb.String("first"), nil
	})

	_, err := rpc.CallClientStream(context.Background(), h, words("join"), codec, codec, input)
	assert.ErrorIs(t, err, boom)
}

func TestTransport_PartialConsumption(t *testing.T) {
	h := startServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := rpc.CallServerStream(ctx, h, words("split"), codec, codec, wrapperspb.String("a b c d e"))
	require.NoError(t, err)

	first, err := out.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", first.GetValue())
}

func TestRegisterService(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterService(srv, newTestService(), nopLogger())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	info, ok := srv.GetServiceInfo()["test.Words"]
	require.True(t, ok)
	names := make([]string, len(info.Methods))
	for i, m := range info.Methods {
		names[i] = m.Name
		assert.True(t, m.IsClientStream)
		assert.True(t, m.IsServerStream)
	}
	assert.ElementsMatch(t, []string{"upper", "join", "split", "echo", "denied"}, names)

	h := dial(t, lis)
	resp, err := rpc.CallUnary(context.Background(), h, words("upper"), codec, codec, wrapperspb.String("registered"))
	require.NoError(t, err)
	assert.Equal(t, "REGISTERED", resp.GetValue())
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{name: "decode", err: rpc.DecodeError(3, errors.New("bad")), code: codes.InvalidArgument},
		{name: "encode", err: rpc.EncodeError(0, errors.New("bad")), code: codes.Internal},
		{name: "service not found", err: rpc.ServiceNotFound("a.B"), code: codes.Unimplemented},
		{name: "stream length", err: rpc.StreamLengthError(1, 2), code: codes.InvalidArgument},
		{name: "method", err: rpc.MethodError(errors.New("x")), code: codes.Unknown},
		{name: "method with status", err: rpc.MethodError(status.Error(codes.NotFound, "gone")), code: codes.NotFound},
		{name: "canceled", err: context.Canceled, code: codes.Canceled},
		{name: "plain", err: errors.New("plain"), code: codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := ToStatus(tt.err)
			assert.Equal(t, tt.code, st.Code())

			back := FromStatus(st.Err())
			var want *rpc.ServiceError
			if errors.As(tt.err, &want) {
				var got *rpc.ServiceError
				require.ErrorAs(t, back, &got)
				assert.Equal(t, want.Kind, got.Kind)
				assert.Equal(t, want.Want, got.Want)
				assert.Equal(t, want.Got, got.Got)
				assert.Equal(t, want.Index, got.Index)
				assert.Equal(t, want.Error(), got.Error())
			}
		})
	}
}

func TestFrameCodec(t *testing.T) {
	c := frameCodec{}
	b, err := c.Marshal([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	var out []byte
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, []byte("abc"), out)

	_, err = c.Marshal("string")
	assert.Error(t, err)
	assert.Error(t, c.Unmarshal(b, new(string)))
}

func TestTransport_ProtoWireReachesPlainServers(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "test.Plain",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "upper",
			Handler: func(_ any, _ context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(wrapperspb.StringValue)
				if err := dec(in); err != nil {
					return nil, err
				}
				return wrapperspb.String(strings.ToUpper(in.GetValue())), nil
			},
		}},
	}, struct{}{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	h := dial(t, lis, WithProtoWire())
	ep := rpc.Endpoint{Package: "test", Service: "Plain", Method: "upper"}
	resp, err := rpc.CallUnary(context.Background(), h, ep, codec, codec, wrapperspb.String("plain"))
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", resp.GetValue())
}

func TestRegisterReflection(t *testing.T) {
	files, err := greeter.Files()
	require.NoError(t, err)
	router := rpc.NewRouter(nopLogger())
	require.NoError(t, router.Register(greeter.NewService()))

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(router, nopLogger())
	RegisterReflection(srv, router, files)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	client := grpcreflect.NewClientAuto(context.Background(), conn)
	defer client.Reset()
	services, err := client.ListServices()
	require.NoError(t, err)
	assert.Equal(t, []string{greeter.Descriptor}, services)

	sd, err := client.ResolveService(greeter.Descriptor)
	require.NoError(t, err)
	assert.Len(t, sd.GetMethods(), 4)

	h := NewClientHandler(conn, nopLogger())
	resp, err := rpc.CallUnary(context.Background(), h, rpc.Endpoint{Package: "greeter", Service: "Greeter", Method: "say_hello"}, codec, codec, wrapperspb.String("World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", resp.GetValue())
}
