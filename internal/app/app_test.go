package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/shhac/nrpc/gen"
	apperrors "github.com/shhac/nrpc/internal/errors"
	"github.com/shhac/nrpc/internal/logging"
	"github.com/shhac/nrpc/internal/source"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/transport/grpctransport"
)

const protoRoot = "../../testdata/protos"

func newTestApp(t *testing.T, mutate func(*Config)) *App {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutDir = t.TempDir()
	cfg.Files = []string{"helloworld/helloworld.proto"}
	cfg.Includes = []string{protoRoot}
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Generate(t *testing.T) {
	a := newTestApp(t, nil)

	res, err := a.Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.Written, "helloworld/helloworld_nrpc.pb.go")
	assert.Contains(t, res.Written, gen.ManifestFile)

	src, err := os.ReadFile(filepath.Join(a.Config().OutDir, "helloworld", "helloworld_nrpc.pb.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "type GreeterServer interface")
	assert.Contains(t, string(src), "type GreeterClient struct")

	again, err := a.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Written, "a second run changes nothing")
	assert.Positive(t, again.Unchanged)
}

func TestApp_GenerateWithTemplate(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "count.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("const {{.GoName}}MethodCount = {{len .Methods}}\n"), 0644))

	a := newTestApp(t, func(c *Config) {
		c.Server, c.Client = false, false
		c.Templates = []string{tmpl}
	})
	_, err := a.Generate(context.Background())
	require.NoError(t, err)

	src, err := os.ReadFile(filepath.Join(a.Config().OutDir, "helloworld", "helloworld_nrpc.pb.go"))
	require.NoError(t, err)
	assert.Contains(t, string(src), "const GreeterMethodCount = 4")
	assert.NotContains(t, string(src), "GreeterServer")
}

func TestApp_GenerateErrors(t *testing.T) {
	a := newTestApp(t, func(c *Config) { c.Files = nil })
	_, err := a.Generate(context.Background())
	assert.ErrorIs(t, err, gen.ErrNoInputFiles)

	a = newTestApp(t, func(c *Config) { c.Server, c.Client = false, false })
	_, err = a.Generate(context.Background())
	var verr apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)

	a = newTestApp(t, func(c *Config) { c.Templates = []string{"missing-template.tmpl"} })
	_, err = a.Generate(context.Background())
	assert.ErrorAs(t, err, &verr)
}

func TestApp_Describe(t *testing.T) {
	a := newTestApp(t, nil)
	services, err := a.Describe(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "helloworld.Greeter", services[0].FullName)
	assert.Equal(t, rpc.ServerStreaming, services[0].Methods[2].Cardinality)
}

// startGreeter serves a dynamic Greeter on a loopback port. The reply echoes
// the "x-greeting" header when present.
func startGreeter(t *testing.T) string {
	t.Helper()
	schema, err := source.FromFiles([]string{"helloworld/helloworld.proto"}, []string{protoRoot})
	require.NoError(t, err)
	md, err := schema.FindMethod("helloworld.Greeter", "say_hello")
	require.NoError(t, err)

	in := rpc.NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(md.Input()) })
	out := rpc.NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(md.Output()) })
	greeter := rpc.NewDispatcher("helloworld.Greeter",
		rpc.UnaryMethod("say_hello", in, out, func(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
			greeting := "Hello"
			if v := metadata.ValueFromIncomingContext(ctx, "x-greeting"); len(v) > 0 {
				greeting = v[0]
			}
			name := req.Get(md.Input().Fields().ByName("name")).String()
			reply := dynamicpb.NewMessage(md.Output())
			reply.Set(md.Output().Fields().ByName("message"), protoreflect.ValueOfString(greeting+" "+name))
			return reply, nil
		}),
	)

	srv := grpc.NewServer()
	grpctransport.RegisterService(srv, greeter, logging.NewNopLogger())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestApp_Call(t *testing.T) {
	addr := startGreeter(t)
	a := newTestApp(t, nil)

	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{"plain", nil, "Hello World"},
		{"header", []string{"x-greeting: Howdy"}, "Howdy World"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []json.RawMessage
			err := a.Call(context.Background(), CallRequest{
				Target:   source.Connection{Address: addr},
				Method:   "/helloworld.Greeter/say_hello",
				Requests: []json.RawMessage{json.RawMessage(`{"name":"World"}`)},
				Headers:  tt.headers,
				Zstd:     true,
			}, func(m json.RawMessage) error {
				got = append(got, m)
				return nil
			})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.JSONEq(t, `{"message":"`+tt.want+`"}`, string(got[0]))
		})
	}
}

func TestApp_CallErrors(t *testing.T) {
	addr := startGreeter(t)
	a := newTestApp(t, nil)
	emit := func(json.RawMessage) error { return nil }

	err := a.Call(context.Background(), CallRequest{
		Target: source.Connection{Address: addr},
		Method: "helloworld.Greeter/nope",
	}, emit)
	assert.ErrorIs(t, err, rpc.ErrMethodNotFound)

	err = a.Call(context.Background(), CallRequest{
		Target:   source.Connection{Address: addr},
		Method:   "helloworld.Greeter/say_hello",
		Requests: []json.RawMessage{json.RawMessage(`{}`), json.RawMessage(`{}`)},
	}, emit)
	assert.ErrorIs(t, err, rpc.ErrStreamLength)

	err = a.Call(context.Background(), CallRequest{
		Target:  source.Connection{Address: addr},
		Method:  "helloworld.Greeter/say_hello",
		Headers: []string{"no-colon"},
	}, emit)
	var verr apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseHeaders(t *testing.T) {
	md, err := parseHeaders([]string{"a: 1", "A:2", "b:  x:y "})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, md.Get("a"))
	assert.Equal(t, []string{"x:y"}, md.Get("b"))

	_, err = parseHeaders([]string{": v"})
	assert.Error(t, err)
}
