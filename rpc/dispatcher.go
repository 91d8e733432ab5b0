package rpc

import (
	"context"
	"fmt"

	"github.com/shhac/nrpc/stream"
)

// MethodHandler is a method with its types erased: frames in, frames out.
type MethodHandler func(ctx context.Context, input FrameStream) (FrameStream, error)

// Method is one routable entry of a Dispatcher.
type Method struct {
	Name        string
	Cardinality Cardinality
	Handler     MethodHandler
}

// UnaryMethod binds a 1 → 1 handler to name.
func UnaryMethod[In, Out any](name string, in Codec[In], out Codec[Out], fn func(context.Context, In) (Out, error)) Method {
	return Method{
		Name:        name,
		Cardinality: Unary,
		Handler: func(ctx context.Context, input FrameStream) (FrameStream, error) {
			return ServeUnary(ctx, input, in, out, fn)
		},
	}
}

// ClientStreamMethod binds a many → 1 handler to name.
func ClientStreamMethod[In, Out any](name string, in Codec[In], out Codec[Out], fn func(context.Context, stream.Stream[In]) (Out, error)) Method {
	return Method{
		Name:        name,
		Cardinality: ClientStreaming,
		Handler: func(ctx context.Context, input FrameStream) (FrameStream, error) {
			return ServeClientStream(ctx, input, in, out, fn)
		},
	}
}

// ServerStreamMethod binds a 1 → many handler to name.
func ServerStreamMethod[In, Out any](name string, in Codec[In], out Codec[Out], fn func(context.Context, In) (stream.Stream[Out], error)) Method {
	return Method{
		Name:        name,
		Cardinality: ServerStreaming,
		Handler: func(ctx context.Context, input FrameStream) (FrameStream, error) {
			return ServeServerStream(ctx, input, in, out, fn)
		},
	}
}

// BidiMethod binds a many → many handler to name.
func BidiMethod[In, Out any](name string, in Codec[In], out Codec[Out], fn func(context.Context, stream.Stream[In]) (stream.Stream[Out], error)) Method {
	return Method{
		Name:        name,
		Cardinality: Bidi,
		Handler: func(ctx context.Context, input FrameStream) (FrameStream, error) {
			return ServeBidi(ctx, input, in, out, fn)
		},
	}
}

// Dispatcher routes calls for one service by exact method name.
// It implements ServerService.
type Dispatcher struct {
	descriptor string
	methods    []Method
	byName     map[string]int
}

// NewDispatcher builds the routing table for the service named descriptor.
// It panics on an empty or duplicate method name, which can only come from
// hand-written code: generated bindings always pass unique names.
func NewDispatcher(descriptor string, methods ...Method) *Dispatcher {
	d := &Dispatcher{
		descriptor: descriptor,
		methods:    make([]Method, 0, len(methods)),
		byName:     make(map[string]int, len(methods)),
	}
	for _, m := range methods {
		if m.Name == "" {
			panic(fmt.Sprintf("rpc: empty method name in %s", descriptor))
		}
		if m.Handler == nil {
			panic(fmt.Sprintf("rpc: nil handler for %s/%s", descriptor, m.Name))
		}
		if _, dup := d.byName[m.Name]; dup {
			panic(fmt.Sprintf("rpc: duplicate method %s/%s", descriptor, m.Name))
		}
		d.byName[m.Name] = len(d.methods)
		d.methods = append(d.methods, m)
	}
	return d
}

// Descriptor returns "package.Service".
func (d *Dispatcher) Descriptor() string { return d.descriptor }

// Methods returns the routing table in registration order.
func (d *Dispatcher) Methods() []Method {
	out := make([]Method, len(d.methods))
	copy(out, d.methods)
	return out
}

// Lookup returns the method registered under name.
func (d *Dispatcher) Lookup(name string) (Method, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Method{}, false
	}
	return d.methods[i], true
}

// Call runs the named method over input.
func (d *Dispatcher) Call(ctx context.Context, method string, input FrameStream) (FrameStream, error) {
	m, ok := d.Lookup(method)
	if !ok {
		return nil, MethodNotFound(d.descriptor, method)
	}
	return m.Handler(ctx, input)
}
