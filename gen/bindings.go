package gen

import (
	"fmt"
	"path"
	"strconv"

	"google.golang.org/protobuf/compiler/protogen"

	"github.com/shhac/nrpc/rpc"
)

const (
	contextPackage = protogen.GoImportPath("context")
	rpcPackage     = protogen.GoImportPath("github.com/shhac/nrpc/rpc")
	streamPackage  = protogen.GoImportPath("github.com/shhac/nrpc/stream")
)

// File names of the per-package aggregates written by Bindings.Finalize.
const (
	ClientsFile = "nrpc_clients.pb.go"
	ServersFile = "nrpc_servers.pb.go"
)

// Bindings generates the typed client and server surfaces of each service
// and, when finalized, one aggregate per Go package bundling them.
type Bindings struct {
	server bool
	client bool

	exports map[protogen.GoImportPath]*packageExports
	order   []protogen.GoImportPath
}

// packageExports is the re-export bookkeeping for one Go package.
type packageExports struct {
	dir      string
	name     protogen.GoPackageName
	services []*Service
}

// AllBindings generates both surfaces.
func AllBindings() *Bindings { return newBindings(true, true) }

// ServerBindings generates only the server surface.
func ServerBindings() *Bindings { return newBindings(true, false) }

// ClientBindings generates only the client surface.
func ClientBindings() *Bindings { return newBindings(false, true) }

func newBindings(server, client bool) *Bindings {
	return &Bindings{
		server:  server,
		client:  client,
		exports: make(map[protogen.GoImportPath]*packageExports),
	}
}

// GenerateService emits the enabled surfaces for svc.
func (b *Bindings) GenerateService(g *protogen.GeneratedFile, svc *Service) error {
	if err := b.track(svc); err != nil {
		return err
	}
	if b.server {
		genServer(g, svc)
	}
	if b.client {
		genClient(g, svc)
	}
	return nil
}

// track records svc for the aggregates of its Go package. The aggregates
// name their fields after services, so two services with the same Go name
// cannot share a package.
func (b *Bindings) track(svc *Service) error {
	e, ok := b.exports[svc.GoImportPath]
	if !ok {
		e = &packageExports{dir: path.Dir(svc.GeneratedFilenamePrefix), name: svc.GoPackageName}
		b.exports[svc.GoImportPath] = e
		b.order = append(b.order, svc.GoImportPath)
	}
	for _, other := range e.services {
		if other.GoName == svc.GoName {
			return &ValidationError{
				Service: svc.Descriptor(),
				Reason:  fmt.Sprintf("Go name %s is already used by %s in %s", svc.GoName, other.Descriptor(), svc.GoImportPath),
			}
		}
	}
	e.services = append(e.services, svc)
	return nil
}

// Finalize writes the aggregates for every package seen since the last
// Finalize, then forgets them.
func (b *Bindings) Finalize(p *protogen.Plugin) error {
	for _, importPath := range b.order {
		e := b.exports[importPath]
		if b.client {
			g := p.NewGeneratedFile(path.Join(e.dir, ClientsFile), importPath)
			writePackageHeader(g, e.name)
			genClients(g, e.services)
		}
		if b.server {
			g := p.NewGeneratedFile(path.Join(e.dir, ServersFile), importPath)
			writePackageHeader(g, e.name)
			genServers(g, e.services)
		}
	}
	b.exports = make(map[protogen.GoImportPath]*packageExports)
	b.order = nil
	return nil
}

// Pending returns the number of services awaiting Finalize.
func (b *Bindings) Pending() int {
	n := 0
	for _, e := range b.exports {
		n += len(e.services)
	}
	return n
}

func writePackageHeader(g *protogen.GeneratedFile, name protogen.GoPackageName) {
	g.P("// Code generated by protoc-gen-go-nrpc. DO NOT EDIT.")
	g.P()
	g.P("package ", name)
	g.P()
}

func codecFor(ident protogen.GoIdent) []any {
	return []any{rpcPackage.Ident("ProtoCodec"), "[*", ident, "]()"}
}

func inputParam(m *Method) []any {
	if m.ClientStreaming {
		return []any{"reqs ", streamPackage.Ident("Stream"), "[*", m.Input, "]"}
	}
	return []any{"req *", m.Input}
}

func outputResult(m *Method) []any {
	if m.ServerStreaming {
		return []any{streamPackage.Ident("Stream"), "[*", m.Output, "]"}
	}
	return []any{"*", m.Output}
}

func signature(m *Method) []any {
	sig := []any{m.GoName, "(ctx ", contextPackage.Ident("Context"), ", "}
	sig = append(sig, inputParam(m)...)
	sig = append(sig, ") (")
	sig = append(sig, outputResult(m)...)
	return append(sig, ", error)")
}

func methodConstructor(c rpc.Cardinality) string {
	switch c {
	case rpc.ClientStreaming:
		return "ClientStreamMethod"
	case rpc.ServerStreaming:
		return "ServerStreamMethod"
	case rpc.Bidi:
		return "BidiMethod"
	default:
		return "UnaryMethod"
	}
}

func callFunction(c rpc.Cardinality) string {
	switch c {
	case rpc.ClientStreaming:
		return "CallClientStream"
	case rpc.ServerStreaming:
		return "CallServerStream"
	case rpc.Bidi:
		return "CallBidi"
	default:
		return "CallUnary"
	}
}

func genServer(g *protogen.GeneratedFile, svc *Service) {
	serverName := svc.GoName + "Server"

	g.P("// ", serverName, " is the server API for the ", svc.Descriptor(), " service.")
	if svc.Comments != "" {
		g.P("//")
	}
	g.P(svc.Comments, "type ", serverName, " interface {")
	for _, m := range svc.Methods {
		g.P(append([]any{m.Comments}, signature(m)...)...)
	}
	g.P("}")
	g.P()

	g.P("// New", svc.GoName, "Service returns a dispatcher routing ", svc.Descriptor(), " calls to impl.")
	g.P("func New", svc.GoName, "Service(impl ", serverName, ") *", rpcPackage.Ident("Dispatcher"), " {")
	g.P("return ", rpcPackage.Ident("NewDispatcher"), "(", strconv.Quote(svc.Descriptor()), ",")
	for _, m := range svc.Methods {
		line := []any{rpcPackage.Ident(methodConstructor(m.Cardinality())), "(", strconv.Quote(m.Name), ", "}
		line = append(line, codecFor(m.Input)...)
		line = append(line, ", ")
		line = append(line, codecFor(m.Output)...)
		line = append(line, ", impl.", m.GoName, "),")
		g.P(line...)
	}
	g.P(")")
	g.P("}")
	g.P()
}

func genClient(g *protogen.GeneratedFile, svc *Service) {
	clientName := svc.GoName + "Client"

	g.P("// ", clientName, " is the client API for the ", svc.Descriptor(), " service.")
	g.P("type ", clientName, " struct {")
	g.P("handler ", rpcPackage.Ident("ClientHandler"))
	g.P("}")
	g.P()

	g.P("// New", clientName, " returns a client that sends calls through h.")
	g.P("func New", clientName, "(h ", rpcPackage.Ident("ClientHandler"), ") *", clientName, " {")
	g.P("return &", clientName, "{handler: h}")
	g.P("}")
	g.P()

	g.P("// Descriptor returns ", strconv.Quote(svc.Descriptor()), ".")
	g.P("func (c *", clientName, ") Descriptor() string { return ", strconv.Quote(svc.Descriptor()), " }")
	g.P()

	for _, m := range svc.Methods {
		arg := "req"
		if m.ClientStreaming {
			arg = "reqs"
		}
		decl := append([]any{m.Comments, "func (c *", clientName, ") "}, signature(m)...)
		g.P(append(decl, " {")...)
		line := []any{"return ", rpcPackage.Ident(callFunction(m.Cardinality())), "(ctx, c.handler, ",
			rpcPackage.Ident("Endpoint"), "{Package: ", strconv.Quote(svc.Package),
			", Service: ", strconv.Quote(svc.Name),
			", Method: ", strconv.Quote(m.Name), "}, "}
		line = append(line, codecFor(m.Input)...)
		line = append(line, ", ")
		line = append(line, codecFor(m.Output)...)
		line = append(line, ", ", arg, ")")
		g.P(line...)
		g.P("}")
		g.P()
	}
}

func genClients(g *protogen.GeneratedFile, services []*Service) {
	g.P("// Clients bundles a client for every service in this package.")
	g.P("type Clients struct {")
	for _, svc := range services {
		g.P(svc.GoName, " *", svc.GoName, "Client")
	}
	g.P("}")
	g.P()
	g.P("// NewClients returns clients that all send calls through h.")
	g.P("func NewClients(h ", rpcPackage.Ident("ClientHandler"), ") *Clients {")
	g.P("return &Clients{")
	for _, svc := range services {
		g.P(svc.GoName, ": New", svc.GoName, "Client(h),")
	}
	g.P("}")
	g.P("}")
}

func genServers(g *protogen.GeneratedFile, services []*Service) {
	g.P("// Servers holds an implementation for each service in this package.")
	g.P("// Nil entries are skipped by Register.")
	g.P("type Servers struct {")
	for _, svc := range services {
		g.P(svc.GoName, " ", svc.GoName, "Server")
	}
	g.P("}")
	g.P()
	g.P("// Register adds a dispatcher for every non-nil implementation to r.")
	g.P("func (s *Servers) Register(r *", rpcPackage.Ident("Router"), ") error {")
	for _, svc := range services {
		g.P("if s.", svc.GoName, " != nil {")
		g.P("if err := r.Register(New", svc.GoName, "Service(s.", svc.GoName, ")); err != nil {")
		g.P("return err")
		g.P("}")
		g.P("}")
	}
	g.P("return nil")
	g.P("}")
}
