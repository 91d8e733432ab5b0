package gen

import (
	"log/slog"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/types/pluginpb"
)

// SupportedFeatures is reported to protoc by the plugin.
const SupportedFeatures = uint64(pluginpb.CodeGeneratorResponse_FEATURE_PROTO3_OPTIONAL)

// Options selects what a plugin run generates.
type Options struct {
	Server bool
	Client bool
	// Generators run after the built-in bindings, in order.
	Generators []ServiceGenerator
	// Prologue is emitted at the top of every bindings file.
	Prologue []byte
	// Manifest writes nrpc_manifest.toml as a generated file.
	Manifest  bool
	IndexSink Sink
	Logger    *slog.Logger
}

// Generate is the protoc plugin entry point.
func Generate(p *protogen.Plugin, opts Options) error {
	merged := NewMerged()
	switch {
	case opts.Server && opts.Client:
		merged.Add(AllBindings())
	case opts.Server:
		merged.Add(ServerBindings())
	case opts.Client:
		merged.Add(ClientBindings())
	}
	merged.Add(opts.Generators...)
	if merged.Len() == 0 {
		return ErrNoGenerators
	}

	copts := []ComposerOption{WithPrologue(opts.Prologue), WithManifest(opts.Manifest)}
	if opts.IndexSink != nil {
		copts = append(copts, WithIndexSink(opts.IndexSink))
	}
	if opts.Logger != nil {
		copts = append(copts, WithLogger(opts.Logger))
	}
	return NewComposer(merged, copts...).Run(p)
}
