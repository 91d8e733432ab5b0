package rpc

import "context"

// CallInfo identifies the call an Invoker is handling.
type CallInfo struct {
	Package string
	Service string
	Method  string
	// Server is true when the call is being served rather than made.
	Server bool
}

// Descriptor returns "package.Service".
func (c CallInfo) Descriptor() string { return JoinDescriptor(c.Package, c.Service) }

// Endpoint returns the call address.
func (c CallInfo) Endpoint() Endpoint {
	return Endpoint{Package: c.Package, Service: c.Service, Method: c.Method}
}

// Invoker is the shape shared by both sides of the contract once the call is
// addressed.
type Invoker func(ctx context.Context, info CallInfo, input FrameStream) (FrameStream, error)

// Middleware wraps an Invoker. Middleware must keep streams lazy: wrap the
// input and output streams rather than draining them.
type Middleware func(next Invoker) Invoker

// Chain composes mw so that the first element is the outermost wrapper.
func Chain(mw ...Middleware) Middleware {
	return func(next Invoker) Invoker {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

type interceptedClient struct {
	invoke Invoker
}

// InterceptClient returns a handler that runs every call through mw before h.
func InterceptClient(h ClientHandler, mw ...Middleware) ClientHandler {
	if len(mw) == 0 {
		return h
	}
	base := func(ctx context.Context, info CallInfo, input FrameStream) (FrameStream, error) {
		return h.Call(ctx, info.Package, info.Service, info.Method, input)
	}
	return interceptedClient{invoke: Chain(mw...)(base)}
}

func (c interceptedClient) Call(ctx context.Context, pkg, service, method string, input FrameStream) (FrameStream, error) {
	return c.invoke(ctx, CallInfo{Package: pkg, Service: service, Method: method}, input)
}

type interceptedServer struct {
	descriptor string
	pkg        string
	service    string
	invoke     Invoker
}

// InterceptServer returns a service that runs every call through mw before svc.
func InterceptServer(svc ServerService, mw ...Middleware) ServerService {
	if len(mw) == 0 {
		return svc
	}
	base := func(ctx context.Context, info CallInfo, input FrameStream) (FrameStream, error) {
		return svc.Call(ctx, info.Method, input)
	}
	desc := svc.Descriptor()
	pkg, name := SplitDescriptor(desc)
	return &interceptedServer{
		descriptor: desc,
		pkg:        pkg,
		service:    name,
		invoke:     Chain(mw...)(base),
	}
}

func (s *interceptedServer) Descriptor() string { return s.descriptor }

func (s *interceptedServer) Call(ctx context.Context, method string, input FrameStream) (FrameStream, error) {
	return s.invoke(ctx, CallInfo{Package: s.pkg, Service: s.service, Method: method, Server: true}, input)
}
