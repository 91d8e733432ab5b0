package gen

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/cmd/protoc-gen-go/internal_gengo"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// Transpiler turns .proto sources into Go bindings without protoc.
type Transpiler struct {
	files    []string
	includes []string
	set      *descriptorpb.FileDescriptorSet

	server        bool
	client        bool
	generators    []ServiceGenerator
	preprocessors []Preprocessor
	messages      bool
	importPrefix  string
	params        []string
	logger        *slog.Logger
}

// NewTranspiler returns a Transpiler for files, resolved against includes.
// File names are relative to an include directory.
func NewTranspiler(files, includes []string) *Transpiler {
	return &Transpiler{
		files:    files,
		includes: includes,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// NewTranspilerFromSet returns a Transpiler over an already built descriptor
// set, generating for the named files. With no names every file in the set
// that declares a service is generated.
func NewTranspilerFromSet(set *descriptorpb.FileDescriptorSet, generate ...string) *Transpiler {
	if len(generate) == 0 {
		for _, f := range set.GetFile() {
			if len(f.GetService()) > 0 {
				generate = append(generate, f.GetName())
			}
		}
	}
	t := NewTranspiler(generate, nil)
	t.set = set
	return t
}

// GenerateAll enables the client and server surfaces.
func (t *Transpiler) GenerateAll() *Transpiler {
	t.server, t.client = true, true
	return t
}

// GenerateServer enables the server surface.
func (t *Transpiler) GenerateServer() *Transpiler {
	t.server = true
	return t
}

// GenerateClient enables the client surface.
func (t *Transpiler) GenerateClient() *Transpiler {
	t.client = true
	return t
}

// WithServiceGenerator adds a generator run after the built-in bindings.
func (t *Transpiler) WithServiceGenerator(g ServiceGenerator) *Transpiler {
	t.generators = append(t.generators, g)
	return t
}

// WithPreprocessor adds a preprocessor. Preprocessors run in order.
func (t *Transpiler) WithPreprocessor(p Preprocessor) *Transpiler {
	t.preprocessors = append(t.preprocessors, p)
	return t
}

// WithMessages also emits the message types, as protoc-gen-go would.
func (t *Transpiler) WithMessages() *Transpiler {
	t.messages = true
	return t
}

// WithImportPrefix sets the Go import path root for files that declare no
// go_package. A file a/b.proto maps to prefix/a.
func (t *Transpiler) WithImportPrefix(prefix string) *Transpiler {
	t.importPrefix = strings.TrimSuffix(prefix, "/")
	return t
}

// WithParameter passes a protogen parameter such as module=... through.
func (t *Transpiler) WithParameter(p string) *Transpiler {
	t.params = append(t.params, p)
	return t
}

// WithLogger sets the logger.
func (t *Transpiler) WithLogger(l *slog.Logger) *Transpiler {
	t.logger = l
	return t
}

// Transpile generates every output file and writes it to sink. The manifest
// is written to sink each time a new proto package is seen and once at the
// end.
func (t *Transpiler) Transpile(sink Sink) error {
	if !t.server && !t.client && len(t.generators) == 0 {
		return ErrNoGenerators
	}
	if len(t.files) == 0 {
		return ErrNoInputFiles
	}

	set := t.set
	if set == nil {
		fds, err := ParseFiles(t.files, t.includes)
		if err != nil {
			return err
		}
		set = DescriptorSet(fds...)
	}
	set = proto.Clone(set).(*descriptorpb.FileDescriptorSet)

	var prologue bytes.Buffer
	for _, pp := range t.preprocessors {
		if err := pp.Process(set, &prologue); err != nil {
			return fmt.Errorf("preprocess: %w", err)
		}
	}

	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: t.files,
		Parameter:      proto.String(strings.Join(t.parameters(set), ",")),
		ProtoFile:      set.GetFile(),
	}
	plugin, err := protogen.Options{}.New(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	if t.messages {
		for _, f := range plugin.Files {
			if f.Generate {
				internal_gengo.GenerateFile(plugin, f)
			}
		}
		plugin.SupportedFeatures = internal_gengo.SupportedFeatures
	}

	err = Generate(plugin, Options{
		Server:     t.server,
		Client:     t.client,
		Generators: t.generators,
		Prologue:   prologue.Bytes(),
		IndexSink:  sink,
		Logger:     t.logger,
	})
	if err != nil {
		return err
	}

	resp := plugin.Response()
	if resp.Error != nil {
		return fmt.Errorf("generate: %s", resp.GetError())
	}
	for _, f := range resp.GetFile() {
		if err := sink.WriteFile(f.GetName(), []byte(f.GetContent())); err != nil {
			return fmt.Errorf("write %s: %w", f.GetName(), err)
		}
		t.logger.Debug("wrote file", "file", f.GetName(), "bytes", len(f.GetContent()))
	}
	t.logger.Info("transpiled", "inputs", len(t.files), "outputs", len(resp.GetFile()))
	return nil
}

func (t *Transpiler) parameters(set *descriptorpb.FileDescriptorSet) []string {
	params := []string{"paths=source_relative"}
	if t.importPrefix != "" {
		for _, f := range set.GetFile() {
			if f.GetOptions().GetGoPackage() != "" {
				continue
			}
			params = append(params, "M"+f.GetName()+"="+path.Join(t.importPrefix, path.Dir(f.GetName())))
		}
	}
	return append(params, t.params...)
}

// ParseFiles parses .proto files with source info, so comments carry over.
func ParseFiles(files, includes []string) ([]*desc.FileDescriptor, error) {
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}
	p := protoparse.Parser{
		ImportPaths:           includes,
		IncludeSourceCodeInfo: true,
	}
	fds, err := p.ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return fds, nil
}

// DescriptorSet flattens fds and their imports into a set in which every
// file follows its dependencies.
func DescriptorSet(fds ...*desc.FileDescriptor) *descriptorpb.FileDescriptorSet {
	set := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)
	var add func(fd *desc.FileDescriptor)
	add = func(fd *desc.FileDescriptor) {
		if seen[fd.GetName()] {
			return
		}
		seen[fd.GetName()] = true
		for _, dep := range fd.GetDependencies() {
			add(dep)
		}
		set.File = append(set.File, fd.AsFileDescriptorProto())
	}
	for _, fd := range fds {
		add(fd)
	}
	return set
}

// Compile generates client and server bindings for files into sink.
func Compile(files, includes []string, sink Sink) error {
	return NewTranspiler(files, includes).GenerateAll().Transpile(sink)
}

// CompileClients generates client bindings only.
func CompileClients(files, includes []string, sink Sink) error {
	return NewTranspiler(files, includes).GenerateClient().Transpile(sink)
}

// CompileServers generates server bindings only.
func CompileServers(files, includes []string, sink Sink) error {
	return NewTranspiler(files, includes).GenerateServer().Transpile(sink)
}
