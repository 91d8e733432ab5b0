// Package greeter is the service behind the nrpc-greeter example server.
// Its bindings are generated into greeterpb; its messages are
// google.protobuf.StringValue, so it needs no generated message code and
// can be described to reflection clients from a hand-built descriptor.
package greeter

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/shhac/nrpc/internal/greeter/greeterpb"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/stream"
)

// Descriptor is the routing name of the service.
const Descriptor = "greeter.Greeter"

const (
	fileName    = "greeter/greeter.proto"
	stringValue = ".google.protobuf.StringValue"
)

// Server implements greeterpb.GreeterServer.
type Server struct{}

var _ greeterpb.GreeterServer = Server{}

// NewService returns the Greeter dispatcher.
func NewService() *rpc.Dispatcher {
	return greeterpb.NewGreeterService(Server{})
}

func (Server) SayHello(_ context.Context, name *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("Hello " + name.GetValue()), nil
}

func (Server) SayHelloManyToOne(_ context.Context, names stream.Stream[*wrapperspb.StringValue]) (*wrapperspb.StringValue, error) {
	var all []string
	for name, err := range stream.All(names) {
		if err != nil {
			return nil, err
		}
		all = append(all, name.GetValue())
	}
	return wrapperspb.String("Hello " + strings.Join(all, ", ")), nil
}

func (Server) SayHelloOneToMany(_ context.Context, name *wrapperspb.StringValue) (stream.Stream[*wrapperspb.StringValue], error) {
	return stream.FromSlice([]*wrapperspb.StringValue{
		wrapperspb.String("Hello " + name.GetValue()),
		wrapperspb.String("Goodbye " + name.GetValue()),
	}), nil
}

func (Server) SayHelloManyToMany(_ context.Context, names stream.Stream[*wrapperspb.StringValue]) (stream.Stream[*wrapperspb.StringValue], error) {
	return stream.Map(names, func(_ int, name *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
		return wrapperspb.String("Hi " + name.GetValue()), nil
	}), nil
}

// File returns the descriptor of greeter/greeter.proto.
func File() *descriptorpb.FileDescriptorProto {
	method := func(name string, clientStreaming, serverStreaming bool) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:            proto.String(name),
			InputType:       proto.String(stringValue),
			OutputType:      proto.String(stringValue),
			ClientStreaming: proto.Bool(clientStreaming),
			ServerStreaming: proto.Bool(serverStreaming),
		}
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(fileName),
		Package:    proto.String("greeter"),
		Dependency: []string{"google/protobuf/wrappers.proto"},
		Syntax:     proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/shhac/nrpc/internal/greeter/greeterpb;greeterpb"),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Greeter"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("say_hello", false, false),
				method("say_hello_many_to_one", true, false),
				method("say_hello_one_to_many", false, true),
				method("say_hello_many_to_many", true, true),
			},
		}},
	}
}

// Files returns a registry holding greeter/greeter.proto and its imports.
func Files() (*protoregistry.Files, error) {
	fd, err := protodesc.NewFile(File(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", fileName, err)
	}
	files := new(protoregistry.Files)
	if err := files.RegisterFile(wrapperspb.File_google_protobuf_wrappers_proto); err != nil {
		return nil, err
	}
	if err := files.RegisterFile(fd); err != nil {
		return nil, err
	}
	return files, nil
}
