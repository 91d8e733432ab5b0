package gen

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"

	"google.golang.org/protobuf/compiler/protogen"
)

// TemplateGenerator is a ServiceGenerator backed by a text/template. The
// template executes with the *Service as its data and may call:
//
//	qualify .Input          qualified Go name of a message, importing as needed
//	ident "path" "Name"     qualified name of any Go identifier
//	quote "s"               Go string literal
type TemplateGenerator struct {
	tmpl *template.Template
}

// NewTemplateGenerator parses text under name.
func NewTemplateGenerator(name, text string) (*TemplateGenerator, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs(nil)).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &TemplateGenerator{tmpl: tmpl}, nil
}

// GenerateService executes the template for svc and appends the result to g.
func (t *TemplateGenerator) GenerateService(g *protogen.GeneratedFile, svc *Service) error {
	tmpl, err := t.tmpl.Clone()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.Funcs(templateFuncs(g)).Execute(&buf, svc); err != nil {
		return fmt.Errorf("execute template %s: %w", t.tmpl.Name(), err)
	}
	g.P(buf.String())
	return nil
}

// templateFuncs binds the helpers to g. With a nil g they only serve to
// declare the names at parse time.
func templateFuncs(g *protogen.GeneratedFile) template.FuncMap {
	qualify := func(id protogen.GoIdent) string {
		if g == nil {
			return id.GoName
		}
		return g.QualifiedGoIdent(id)
	}
	return template.FuncMap{
		"qualify": qualify,
		"ident": func(importPath, name string) string {
			return qualify(protogen.GoImportPath(importPath).Ident(name))
		},
		"quote": strconv.Quote,
	}
}
