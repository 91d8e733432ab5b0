package gen

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ManifestFile is the name of the index written next to the bindings.
const ManifestFile = "nrpc_manifest.toml"

// Sink receives generated files.
type Sink interface {
	WriteFile(name string, content []byte) error
}

// Manifest indexes the proto packages a run has generated bindings for.
type Manifest struct {
	Packages []PackageEntry `toml:"package"`
}

// PackageEntry describes one proto package in the manifest.
type PackageEntry struct {
	Name         string   `toml:"name"`
	GoImportPath string   `toml:"go_import_path"`
	Files        []string `toml:"files"`
	Services     []string `toml:"services"`
}

// Lookup returns the entry for the proto package name.
func (m *Manifest) Lookup(name string) (*PackageEntry, bool) {
	for i := range m.Packages {
		if m.Packages[i].Name == name {
			return &m.Packages[i], true
		}
	}
	return nil, false
}

// record adds svc to the manifest and reports whether its package is new.
func (m *Manifest) record(svc *Service) bool {
	e, ok := m.Lookup(svc.Package)
	if !ok {
		m.Packages = append(m.Packages, PackageEntry{
			Name:         svc.Package,
			GoImportPath: string(svc.GoImportPath),
		})
		e = &m.Packages[len(m.Packages)-1]
	}
	if !contains(e.Files, svc.File) {
		e.Files = append(e.Files, svc.File)
	}
	e.Services = append(e.Services, svc.Descriptor())
	return !ok
}

// Encode renders the manifest as TOML.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses a manifest written by Encode.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
