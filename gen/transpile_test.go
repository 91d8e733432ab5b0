package gen

import (
	"bytes"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/shhac/nrpc/internal/storage"
)

const protoRoot = "../testdata/protos"

var (
	helloworld = []string{"helloworld/helloworld.proto"}
	routeguide = []string{"routeguide/routeguide.proto"}
)

func fileContent(t *testing.T, sink *storage.MemorySink, name string) string {
	t.Helper()
	data, ok := sink.Get(name)
	require.True(t, ok, "missing %s; have %v", name, sink.Files())
	return string(data)
}

// assertParses checks that every Go file in sink is syntactically valid.
func assertParses(t *testing.T, sink *storage.MemorySink) {
	t.Helper()
	fset := token.NewFileSet()
	for _, name := range sink.Files() {
		if !strings.HasSuffix(name, ".go") {
			continue
		}
		data, _ := sink.Get(name)
		_, err := parser.ParseFile(fset, name, data, parser.AllErrors)
		assert.NoError(t, err, name)
	}
}

func TestTranspile_Helloworld(t *testing.T) {
	sink := storage.NewMemorySink()
	require.NoError(t, Compile(helloworld, []string{protoRoot}, sink))

	assert.Equal(t, []string{
		"helloworld/helloworld_nrpc.pb.go",
		"helloworld/nrpc_clients.pb.go",
		"helloworld/nrpc_servers.pb.go",
		ManifestFile,
	}, sink.Files())
	assertParses(t, sink)

	src := fileContent(t, sink, "helloworld/helloworld_nrpc.pb.go")
	for _, want := range []string{
		"// Code generated by protoc-gen-go-nrpc. DO NOT EDIT.",
		"// source: helloworld/helloworld.proto",
		"package helloworld",
		"// The greeting service definition.\ntype GreeterServer interface {",
		"\t// Sends a greeting.\n\tSayHello(ctx context.Context, req *HelloRequest) (*HelloReply, error)",
		"SayHelloManyToOne(ctx context.Context, reqs stream.Stream[*HelloRequest]) (*HelloReply, error)",
		"SayHelloOneToMany(ctx context.Context, req *HelloRequest) (stream.Stream[*HelloReply], error)",
		"func NewGreeterService(impl GreeterServer) *rpc.Dispatcher {",
		`rpc.NewDispatcher("helloworld.Greeter",`,
		`rpc.BidiMethod("say_hello_many_to_many", rpc.ProtoCodec[*HelloRequest](), rpc.ProtoCodec[*HelloReply](), impl.SayHelloManyToMany),`,
		"type GreeterClient struct {",
		`func (c *GreeterClient) Descriptor() string { return "helloworld.Greeter" }`,
		`return rpc.CallClientStream(ctx, c.handler, rpc.Endpoint{Package: "helloworld", Service: "Greeter", Method: "say_hello_many_to_one"}`,
	} {
		assert.Contains(t, src, want)
	}

	clients := fileContent(t, sink, "helloworld/nrpc_clients.pb.go")
	assert.Contains(t, clients, "Greeter *GreeterClient")
	assert.Contains(t, clients, "func NewClients(h rpc.ClientHandler) *Clients {")

	servers := fileContent(t, sink, "helloworld/nrpc_servers.pb.go")
	assert.Contains(t, servers, "func (s *Servers) Register(r *rpc.Router) error {")
}

func TestTranspile_Surfaces(t *testing.T) {
	clientSink := storage.NewMemorySink()
	require.NoError(t, CompileClients(routeguide, []string{protoRoot}, clientSink))
	src := fileContent(t, clientSink, "routeguide/routeguide_nrpc.pb.go")
	assert.Contains(t, src, "type RouteGuideClient struct")
	assert.Contains(t, src, "rpc.CallBidi(")
	assert.NotContains(t, src, "RouteGuideServer")
	_, ok := clientSink.Get("routeguide/nrpc_servers.pb.go")
	assert.False(t, ok)

	serverSink := storage.NewMemorySink()
	require.NoError(t, CompileServers(routeguide, []string{protoRoot}, serverSink))
	src = fileContent(t, serverSink, "routeguide/routeguide_nrpc.pb.go")
	assert.Contains(t, src, "type RouteGuideServer interface")
	assert.NotContains(t, src, "RouteGuideClient")
	_, ok = serverSink.Get("routeguide/nrpc_clients.pb.go")
	assert.False(t, ok)
	assertParses(t, serverSink)
}

func TestTranspile_ManifestFollowsPackages(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		writes int
	}{
		{"one package", helloworld, 2},
		{"two packages", append(append([]string{}, helloworld...), routeguide...), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := storage.NewMemorySink()
			require.NoError(t, Compile(tt.files, []string{protoRoot}, sink))
			assert.Equal(t, tt.writes, sink.Writes(ManifestFile))

			m, err := DecodeManifest([]byte(fileContent(t, sink, ManifestFile)))
			require.NoError(t, err)
			require.Len(t, m.Packages, len(tt.files))
			entry, ok := m.Lookup("helloworld")
			require.True(t, ok)
			assert.Equal(t, "github.com/shhac/nrpc/testdata/gen/helloworld", entry.GoImportPath)
			assert.Equal(t, []string{"helloworld/helloworld.proto"}, entry.Files)
			assert.Equal(t, []string{"helloworld.Greeter"}, entry.Services)
		})
	}
}

func TestTranspile_Preprocessor(t *testing.T) {
	sink := storage.NewMemorySink()
	err := NewTranspiler(helloworld, []string{protoRoot}).
		GenerateServer().
		WithPreprocessor(Inject("// Injected is set by a preprocessor.\nconst Injected = true\n")).
		Transpile(sink)
	require.NoError(t, err)

	src := fileContent(t, sink, "helloworld/helloworld_nrpc.pb.go")
	injected := strings.Index(src, "const Injected = true")
	require.NotEqual(t, -1, injected)
	assert.Less(t, injected, strings.Index(src, "type GreeterServer interface"))
	assertParses(t, sink)
}

func TestTranspile_PreprocessorSeesClone(t *testing.T) {
	fds, err := ParseFiles(helloworld, []string{protoRoot})
	require.NoError(t, err)
	set := DescriptorSet(fds...)

	sink := storage.NewMemorySink()
	err = NewTranspilerFromSet(set).
		GenerateClient().
		WithPreprocessor(PreprocessorFunc(func(fds *descriptorpb.FileDescriptorSet, _ *bytes.Buffer) error {
			for _, f := range fds.GetFile() {
				f.Options.GoPackage = proto.String("example.com/renamed;renamed")
			}
			return nil
		})).
		Transpile(sink)
	require.NoError(t, err)

	assert.Contains(t, fileContent(t, sink, "helloworld/helloworld_nrpc.pb.go"), "package renamed")
	assert.Equal(t, "github.com/shhac/nrpc/testdata/gen/helloworld;helloworld", set.GetFile()[0].GetOptions().GetGoPackage(),
		"the caller's set is untouched")
}

func TestTranspile_Messages(t *testing.T) {
	sink := storage.NewMemorySink()
	require.NoError(t, NewTranspiler(helloworld, []string{protoRoot}).GenerateAll().WithMessages().Transpile(sink))

	src := fileContent(t, sink, "helloworld/helloworld.pb.go")
	assert.Contains(t, src, "type HelloRequest struct")
	assertParses(t, sink)
}

func TestTranspile_ImportPrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "echo"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo", "echo.proto"), []byte(`syntax = "proto3";
package echo.v1;
message Msg { string text = 1; }
service Echo { rpc echo(Msg) returns (Msg); }
`), 0644))

	err := NewTranspiler([]string{"echo/echo.proto"}, []string{dir}).GenerateAll().Transpile(storage.NewMemorySink())
	assert.ErrorIs(t, err, ErrInvalidSchema, "no go_package and no prefix")

	sink := storage.NewMemorySink()
	require.NoError(t, NewTranspiler([]string{"echo/echo.proto"}, []string{dir}).
		GenerateAll().
		WithImportPrefix("example.com/gen/").
		Transpile(sink))

	src := fileContent(t, sink, "echo/echo_nrpc.pb.go")
	assert.Contains(t, src, "package echo")
	assert.Contains(t, src, `rpc.Endpoint{Package: "echo.v1", Service: "Echo", Method: "echo"}`)

	m, err := DecodeManifest([]byte(fileContent(t, sink, ManifestFile)))
	require.NoError(t, err)
	entry, ok := m.Lookup("echo.v1")
	require.True(t, ok)
	assert.Equal(t, "example.com/gen/echo", entry.GoImportPath)
}

func TestTranspile_ServiceNameCollisionInPackage(t *testing.T) {
	dir := t.TempDir()
	for _, pkg := range []string{"a", "b"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, pkg), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, pkg, "echo.proto"), []byte(`syntax = "proto3";
package `+pkg+`.v1;
option go_package = "example.com/shared;shared";
message `+strings.ToUpper(pkg)+`Msg { string text = 1; }
service Echo { rpc echo(`+strings.ToUpper(pkg)+`Msg) returns (`+strings.ToUpper(pkg)+`Msg); }
`), 0644))
	}

	err := NewTranspiler([]string{"a/echo.proto", "b/echo.proto"}, []string{dir}).GenerateAll().Transpile(storage.NewMemorySink())
	require.ErrorIs(t, err, ErrInvalidSchema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "b.v1.Echo", verr.Service)
	assert.Contains(t, verr.Reason, "a.v1.Echo")

	sink := storage.NewMemorySink()
	require.NoError(t, NewTranspiler([]string{"a/echo.proto"}, []string{dir}).GenerateAll().Transpile(sink),
		"one Echo per package is fine")
}

func TestTranspile_Template(t *testing.T) {
	tmpl, err := NewTemplateGenerator("describe", `
// {{.GoName}}Descriptor names the service for logs.
var {{.GoName}}Descriptor = {{ident "fmt" "Sprint"}}({{quote .Descriptor}})
{{range .Methods}}
var _ = (*{{qualify .Input}})(nil)
{{- end}}
`)
	require.NoError(t, err)

	sink := storage.NewMemorySink()
	require.NoError(t, NewTranspiler(routeguide, []string{protoRoot}).WithServiceGenerator(tmpl).Transpile(sink))

	src := fileContent(t, sink, "routeguide/routeguide_nrpc.pb.go")
	assert.Contains(t, src, `var RouteGuideDescriptor = fmt.Sprint("routeguide.RouteGuide")`)
	assert.Contains(t, src, `"fmt"`)
	assert.Contains(t, src, "var _ = (*RouteNote)(nil)")
	assertParses(t, sink)

	_, ok := sink.Get("routeguide/nrpc_clients.pb.go")
	assert.False(t, ok, "templates have no aggregates")
}

func TestNewTemplateGenerator_ParseError(t *testing.T) {
	_, err := NewTemplateGenerator("bad", "{{.GoName")
	assert.Error(t, err)
}

func TestTranspile_Errors(t *testing.T) {
	err := NewTranspiler(helloworld, []string{protoRoot}).Transpile(storage.NewMemorySink())
	assert.ErrorIs(t, err, ErrNoGenerators)

	err = NewTranspiler(nil, []string{protoRoot}).GenerateAll().Transpile(storage.NewMemorySink())
	assert.ErrorIs(t, err, ErrNoInputFiles)

	err = Compile([]string{"missing/missing.proto"}, []string{protoRoot}, storage.NewMemorySink())
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestNewTranspilerFromSet_DefaultsToServiceFiles(t *testing.T) {
	fds, err := ParseFiles(append(append([]string{}, helloworld...), routeguide...), []string{protoRoot})
	require.NoError(t, err)
	set := DescriptorSet(fds...)

	sink := storage.NewMemorySink()
	require.NoError(t, NewTranspilerFromSet(set).GenerateClient().Transpile(sink))
	assert.Contains(t, sink.Files(), "helloworld/helloworld_nrpc.pb.go")
	assert.Contains(t, sink.Files(), "routeguide/routeguide_nrpc.pb.go")
	for _, f := range sink.Files() {
		assert.NotContains(t, f, "timestamp")
	}
}

func TestDescriptorSet(t *testing.T) {
	fds, err := ParseFiles(routeguide, []string{protoRoot})
	require.NoError(t, err)

	set := DescriptorSet(fds[0], fds[0])
	var names []string
	for _, f := range set.GetFile() {
		names = append(names, f.GetName())
	}
	assert.Equal(t, []string{"google/protobuf/timestamp.proto", "routeguide/routeguide.proto"}, names)
}
