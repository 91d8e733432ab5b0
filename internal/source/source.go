// Package source acquires schemas for generation and dynamic calls, either
// from .proto files or from a running server's reflection service.
package source

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/shhac/nrpc/gen"
	apperrors "github.com/shhac/nrpc/internal/errors"
	"github.com/shhac/nrpc/rpc"
)

// Schema is a self-contained descriptor set plus the files in it that
// declare services.
type Schema struct {
	Set      *descriptorpb.FileDescriptorSet
	Generate []string
	// Origin describes where the schema came from, for logs.
	Origin string

	files *protoregistry.Files
}

// Service summarizes one service of a schema.
type Service struct {
	FullName string
	File     string
	Methods  []Method
}

// Method summarizes one method of a service.
type Method struct {
	Name        string
	Cardinality rpc.Cardinality
	Input       string
	Output      string
}

// FromFiles parses .proto files, resolved against includes.
func FromFiles(files, includes []string) (*Schema, error) {
	fds, err := gen.ParseFiles(files, includes)
	if err != nil {
		return nil, err
	}
	return NewSchema(gen.DescriptorSet(fds...), fmt.Sprintf("%d file(s)", len(files)), files...)
}

// NewSchema wraps set. With no generate names every file declaring a
// service is selected.
func NewSchema(set *descriptorpb.FileDescriptorSet, origin string, generate ...string) (*Schema, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidDescriptor, err)
	}
	if len(generate) == 0 {
		for _, f := range set.GetFile() {
			if len(f.GetService()) > 0 {
				generate = append(generate, f.GetName())
			}
		}
	}
	return &Schema{Set: set, Generate: generate, Origin: origin, files: files}, nil
}

// Services lists every service declared in the selected files, sorted by
// name.
func (s *Schema) Services() []Service {
	var out []Service
	for _, name := range s.Generate {
		fd, err := s.files.FindFileByPath(name)
		if err != nil {
			continue
		}
		svcs := fd.Services()
		for i := range svcs.Len() {
			out = append(out, describe(svcs.Get(i)))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// FindMethod resolves "package.Service" and a method name.
func (s *Schema) FindMethod(service, method string) (protoreflect.MethodDescriptor, error) {
	d, err := s.files.FindDescriptorByName(protoreflect.FullName(service))
	if err != nil {
		return nil, rpc.ServiceNotFound(service)
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, rpc.ServiceNotFound(service)
	}
	md := sd.Methods().ByName(protoreflect.Name(method))
	if md == nil {
		return nil, rpc.MethodNotFound(service, method)
	}
	return md, nil
}

// FindFullMethod resolves "/package.Service/method" or "package.Service/method".
func (s *Schema) FindFullMethod(name string) (protoreflect.MethodDescriptor, error) {
	ep, ok := rpc.ParseFullMethod(name)
	if !ok {
		return nil, apperrors.ValidationError{Field: "method", Message: fmt.Sprintf("%q is not of the form package.Service/method", name)}
	}
	return s.FindMethod(ep.ServiceName(), ep.Method)
}

func describe(sd protoreflect.ServiceDescriptor) Service {
	svc := Service{
		FullName: string(sd.FullName()),
		File:     sd.ParentFile().Path(),
	}
	methods := sd.Methods()
	for i := range methods.Len() {
		md := methods.Get(i)
		svc.Methods = append(svc.Methods, Method{
			Name:        string(md.Name()),
			Cardinality: rpc.CardinalityOf(md.IsStreamingClient(), md.IsStreamingServer()),
			Input:       string(md.Input().FullName()),
			Output:      string(md.Output().FullName()),
		})
	}
	return svc
}
