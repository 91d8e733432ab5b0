package gen

import (
	"google.golang.org/protobuf/compiler/protogen"
)

// ServiceGenerator emits code for one service into the bindings file of the
// .proto file that declares it.
type ServiceGenerator interface {
	GenerateService(g *protogen.GeneratedFile, svc *Service) error
}

// Finalizer is implemented by generators that emit something once every
// service has been generated.
type Finalizer interface {
	Finalize(p *protogen.Plugin) error
}

// ServiceGeneratorFunc adapts a function to ServiceGenerator.
type ServiceGeneratorFunc func(g *protogen.GeneratedFile, svc *Service) error

// GenerateService calls f.
func (f ServiceGeneratorFunc) GenerateService(g *protogen.GeneratedFile, svc *Service) error {
	return f(g, svc)
}

// Merged runs several generators as one. For each service every generator
// runs in registration order against the same file, and the first error
// stops the run.
type Merged struct {
	generators []ServiceGenerator
}

// NewMerged returns a Merged running gens in order.
func NewMerged(gens ...ServiceGenerator) *Merged {
	m := &Merged{}
	return m.Add(gens...)
}

// Add appends generators. Nil entries are ignored.
func (m *Merged) Add(gens ...ServiceGenerator) *Merged {
	for _, g := range gens {
		if g != nil {
			m.generators = append(m.generators, g)
		}
	}
	return m
}

// Len returns the number of generators.
func (m *Merged) Len() int { return len(m.generators) }

// GenerateService runs every generator for svc.
func (m *Merged) GenerateService(g *protogen.GeneratedFile, svc *Service) error {
	for _, gen := range m.generators {
		if err := gen.GenerateService(g, svc); err != nil {
			return err
		}
	}
	return nil
}

// Finalize runs the finalization pass of every generator that has one.
func (m *Merged) Finalize(p *protogen.Plugin) error {
	for _, gen := range m.generators {
		if fin, ok := gen.(Finalizer); ok {
			if err := fin.Finalize(p); err != nil {
				return err
			}
		}
	}
	return nil
}
