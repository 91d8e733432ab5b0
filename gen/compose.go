package gen

import (
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/protobuf/compiler/protogen"
)

// FileSuffix is the default suffix of per-file bindings.
const FileSuffix = "_nrpc.pb.go"

// State is the lifecycle position of a Composer.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateComposed
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateComposed:
		return "composed"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Composer drives a generator over every service of a plugin run, prepends
// preprocessor output to each bindings file, and keeps the manifest of
// packages seen so far. Once Done, the next Run starts over from Idle with
// an empty manifest.
type Composer struct {
	gen      ServiceGenerator
	prologue []byte
	index    Sink
	logger   *slog.Logger
	suffix   string
	manifest bool

	state   State
	current *Manifest
	last    *Manifest
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithPrologue sets source emitted at the top of every bindings file.
func WithPrologue(src []byte) ComposerOption {
	return func(c *Composer) { c.prologue = src }
}

// WithIndexSink sets where the manifest is re-emitted whenever a new proto
// package is seen and once more when finalizing.
func WithIndexSink(s Sink) ComposerOption {
	return func(c *Composer) { c.index = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// WithFileSuffix replaces FileSuffix for bindings files.
func WithFileSuffix(suffix string) ComposerOption {
	return func(c *Composer) { c.suffix = suffix }
}

// WithManifest controls whether the final manifest is also written as a
// generated file.
func WithManifest(enabled bool) ComposerOption {
	return func(c *Composer) { c.manifest = enabled }
}

// NewComposer returns an idle Composer running gen.
func NewComposer(gen ServiceGenerator, opts ...ComposerOption) *Composer {
	c := &Composer{
		gen:      gen,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		suffix:   FileSuffix,
		manifest: true,
		current:  &Manifest{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Composer) State() State { return c.state }

// Manifest returns the manifest being built, or after Finalize the one that
// was written.
func (c *Composer) Manifest() *Manifest {
	if c.state == StateDone && c.last != nil {
		return c.last
	}
	return c.current
}

// Run generates bindings for every service of the files protoc asked for and
// then finalizes.
func (c *Composer) Run(p *protogen.Plugin) error {
	if c.state == StateDone {
		c.state = StateIdle
	}
	if c.state != StateIdle {
		return fmt.Errorf("%w: run while %s", ErrInvalidState, c.state)
	}
	for _, f := range p.Files {
		if !f.Generate || len(f.Services) == 0 {
			continue
		}
		g := p.NewGeneratedFile(f.GeneratedFilenamePrefix+c.suffix, f.GoImportPath)
		g.P("// Code generated by protoc-gen-go-nrpc. DO NOT EDIT.")
		g.P("// source: ", f.Desc.Path())
		g.P()
		g.P("package ", f.GoPackageName)
		g.P()
		if len(c.prologue) > 0 {
			g.P(string(c.prologue))
		}
		for _, s := range f.Services {
			svc, err := NewService(f, s)
			if err != nil {
				return err
			}
			if err := c.Generate(g, svc); err != nil {
				return err
			}
		}
	}
	return c.Finalize(p)
}

// Generate runs the generator for one service.
func (c *Composer) Generate(g *protogen.GeneratedFile, svc *Service) error {
	if c.state != StateIdle && c.state != StateComposed {
		return fmt.Errorf("%w: generate while %s", ErrInvalidState, c.state)
	}
	c.state = StateGenerating

	if c.current.record(svc) {
		c.logger.Debug("new package", "package", svc.Package, "go_import_path", svc.GoImportPath)
		if err := c.emitIndex(c.current); err != nil {
			return err
		}
	}
	if err := c.gen.GenerateService(g, svc); err != nil {
		return fmt.Errorf("generate %s: %w", svc.Descriptor(), err)
	}
	c.logger.Debug("generated service", "service", svc.Descriptor(), "methods", len(svc.Methods))

	c.state = StateComposed
	return nil
}

// Finalize runs the finalization pass, writes the manifest and clears the
// per-run bookkeeping. It is valid with no services generated.
func (c *Composer) Finalize(p *protogen.Plugin) error {
	if c.state != StateIdle && c.state != StateComposed {
		return fmt.Errorf("%w: finalize while %s", ErrInvalidState, c.state)
	}
	c.state = StateFinalizing

	if fin, ok := c.gen.(Finalizer); ok {
		if err := fin.Finalize(p); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
	}

	if len(c.current.Packages) > 0 {
		if c.manifest {
			data, err := c.current.Encode()
			if err != nil {
				return err
			}
			g := p.NewGeneratedFile(ManifestFile, "")
			if _, err := g.Write(data); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
		}
		if err := c.emitIndex(c.current); err != nil {
			return err
		}
	}

	c.logger.Info("generation finished", "packages", len(c.current.Packages))
	c.last = c.current
	c.current = &Manifest{}
	c.state = StateDone
	return nil
}

func (c *Composer) emitIndex(m *Manifest) error {
	if c.index == nil {
		return nil
	}
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := c.index.WriteFile(ManifestFile, data); err != nil {
		return fmt.Errorf("write manifest index: %w", err)
	}
	return nil
}
