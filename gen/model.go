package gen

import (
	"google.golang.org/protobuf/compiler/protogen"

	"github.com/shhac/nrpc/rpc"
)

// Method describes one RPC method as read from the schema.
type Method struct {
	// Name is the schema name; calls are routed by it.
	Name   string
	GoName string

	// InputType and OutputType are fully qualified message names.
	InputType  string
	OutputType string
	Input      protogen.GoIdent
	Output     protogen.GoIdent

	ClientStreaming bool
	ServerStreaming bool

	Comments protogen.Comments
}

// Cardinality returns the call shape of the method.
func (m *Method) Cardinality() rpc.Cardinality {
	return rpc.CardinalityOf(m.ClientStreaming, m.ServerStreaming)
}

// Service describes one service as read from the schema.
type Service struct {
	Name    string
	GoName  string
	Package string
	// File is the path of the .proto file declaring the service.
	File string
	// GeneratedFilenamePrefix is the output path prefix of that file, as
	// chosen by protogen for the configured paths mode.
	GeneratedFilenamePrefix string

	GoImportPath  protogen.GoImportPath
	GoPackageName protogen.GoPackageName

	Comments protogen.Comments
	Methods  []*Method

	// Proto is the underlying protogen service, for generators that need
	// more than this model exposes.
	Proto *protogen.Service
}

// Descriptor returns the routing name, "package.Service".
func (s *Service) Descriptor() string {
	return rpc.JoinDescriptor(s.Package, s.Name)
}

// NewService builds the model for svc declared in f and checks that its
// names are usable.
func NewService(f *protogen.File, svc *protogen.Service) (*Service, error) {
	s := &Service{
		Name:                    string(svc.Desc.Name()),
		GoName:                  svc.GoName,
		Package:                 string(f.Desc.Package()),
		File:                    f.Desc.Path(),
		GeneratedFilenamePrefix: f.GeneratedFilenamePrefix,
		GoImportPath:            f.GoImportPath,
		GoPackageName:           f.GoPackageName,
		Comments:                svc.Comments.Leading,
		Proto:                   svc,
	}
	for _, m := range svc.Methods {
		s.Methods = append(s.Methods, &Method{
			Name:            string(m.Desc.Name()),
			GoName:          m.GoName,
			InputType:       string(m.Input.Desc.FullName()),
			OutputType:      string(m.Output.Desc.FullName()),
			Input:           m.Input.GoIdent,
			Output:          m.Output.GoIdent,
			ClientStreaming: m.Desc.IsStreamingClient(),
			ServerStreaming: m.Desc.IsStreamingServer(),
			Comments:        m.Comments.Leading,
		})
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks for missing and duplicate names.
func (s *Service) Validate() error {
	if s.Name == "" {
		return &ValidationError{Service: s.Descriptor(), Reason: "service has no name"}
	}
	names := make(map[string]bool, len(s.Methods))
	goNames := make(map[string]bool, len(s.Methods))
	for _, m := range s.Methods {
		if m.Name == "" {
			return &ValidationError{Service: s.Descriptor(), Reason: "method has no name"}
		}
		if names[m.Name] {
			return &ValidationError{Service: s.Descriptor(), Method: m.Name, Reason: "duplicate method name"}
		}
		if goNames[m.GoName] {
			return &ValidationError{Service: s.Descriptor(), Method: m.Name, Reason: "method name collides with another after conversion to " + m.GoName}
		}
		names[m.Name] = true
		goNames[m.GoName] = true
	}
	return nil
}
