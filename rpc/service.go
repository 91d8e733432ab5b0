package rpc

import (
	"context"
	"strings"

	"github.com/shhac/nrpc/stream"
)

// FrameStream is a stream of opaque, already-serialized messages.
type FrameStream = stream.Stream[[]byte]

// ServerService is the server side of the transport contract. A transport
// hands it the method name and the incoming frames, and forwards whatever
// frames come back.
type ServerService interface {
	// Descriptor returns the routing name, "package.Service".
	Descriptor() string
	// Call runs method over input. An unknown method yields a
	// MethodNotFound error and no stream.
	Call(ctx context.Context, method string, input FrameStream) (FrameStream, error)
}

// ClientHandler is the client side of the transport contract. One handler
// serves every service and every call shape.
type ClientHandler interface {
	Call(ctx context.Context, pkg, service, method string, input FrameStream) (FrameStream, error)
}

// ClientHandlerFunc adapts a function to ClientHandler.
type ClientHandlerFunc func(ctx context.Context, pkg, service, method string, input FrameStream) (FrameStream, error)

// Call calls f.
func (f ClientHandlerFunc) Call(ctx context.Context, pkg, service, method string, input FrameStream) (FrameStream, error) {
	return f(ctx, pkg, service, method, input)
}

// ClientService is implemented by generated clients.
type ClientService interface {
	Descriptor() string
}

// Endpoint addresses one method of one service.
type Endpoint struct {
	Package string
	Service string
	Method  string
}

// ServiceName returns "package.Service", or just the service without a package.
func (e Endpoint) ServiceName() string {
	return JoinDescriptor(e.Package, e.Service)
}

// FullMethod returns "/package.Service/method".
func (e Endpoint) FullMethod() string {
	return "/" + e.ServiceName() + "/" + e.Method
}

func (e Endpoint) String() string { return e.ServiceName() + "/" + e.Method }

// JoinDescriptor builds a service descriptor from its package and name.
func JoinDescriptor(pkg, service string) string {
	if pkg == "" {
		return service
	}
	return pkg + "." + service
}

// SplitDescriptor splits "a.b.Service" into ("a.b", "Service").
func SplitDescriptor(descriptor string) (pkg, service string) {
	i := strings.LastIndexByte(descriptor, '.')
	if i < 0 {
		return "", descriptor
	}
	return descriptor[:i], descriptor[i+1:]
}

// ParseFullMethod splits "/package.Service/method" into an Endpoint.
func ParseFullMethod(fullMethod string) (Endpoint, bool) {
	s := strings.TrimPrefix(fullMethod, "/")
	i := strings.LastIndexByte(s, '/')
	if i <= 0 || i == len(s)-1 {
		return Endpoint{}, false
	}
	pkg, svc := SplitDescriptor(s[:i])
	return Endpoint{Package: pkg, Service: svc, Method: s[i+1:]}, true
}
