package gen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/compiler/protogen"

	"github.com/shhac/nrpc/rpc"
)

type recorder struct {
	name      string
	log       *[]string
	err       error
	finalized bool
}

func (r *recorder) GenerateService(_ *protogen.GeneratedFile, svc *Service) error {
	*r.log = append(*r.log, r.name+":"+svc.Name)
	return r.err
}

func (r *recorder) Finalize(*protogen.Plugin) error {
	r.finalized = true
	return nil
}

func TestMerged_RunsInOrder(t *testing.T) {
	var log []string
	a := &recorder{name: "a", log: &log}
	b := &recorder{name: "b", log: &log}
	plain := ServiceGeneratorFunc(func(_ *protogen.GeneratedFile, svc *Service) error {
		log = append(log, "plain:"+svc.Name)
		return nil
	})

	m := NewMerged(a, nil, plain).Add(b)
	assert.Equal(t, 3, m.Len())

	require.NoError(t, m.GenerateService(nil, &Service{Name: "S"}))
	assert.Equal(t, []string{"a:S", "plain:S", "b:S"}, log)

	require.NoError(t, m.Finalize(nil))
	assert.True(t, a.finalized)
	assert.True(t, b.finalized)
}

func TestMerged_FirstErrorStops(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewMerged(&recorder{name: "a", log: &log, err: boom}, &recorder{name: "b", log: &log})

	assert.ErrorIs(t, m.GenerateService(nil, &Service{Name: "S"}), boom)
	assert.Equal(t, []string{"a:S"}, log)
}

func TestService_Validate(t *testing.T) {
	method := func(name, goName string) *Method { return &Method{Name: name, GoName: goName} }
	tests := []struct {
		name    string
		svc     *Service
		wantErr string
	}{
		{"ok", &Service{Name: "Svc", Package: "pkg", Methods: []*Method{method("a", "A"), method("b", "B")}}, ""},
		{"no service name", &Service{Package: "pkg"}, "service has no name"},
		{"no method name", &Service{Name: "Svc", Methods: []*Method{method("", "")}}, "method has no name"},
		{"duplicate", &Service{Name: "Svc", Methods: []*Method{method("a", "A"), method("a", "A")}}, "duplicate method name"},
		{"go collision", &Service{Name: "Svc", Methods: []*Method{method("say_hello", "SayHello"), method("SayHello", "SayHello")}}, "collides"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.svc.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Reason, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "pkg.Svc/m: bad", (&ValidationError{Service: "pkg.Svc", Method: "m", Reason: "bad"}).Error())
	assert.Equal(t, "pkg.Svc: bad", (&ValidationError{Service: "pkg.Svc", Reason: "bad"}).Error())
}

func TestMethod_Cardinality(t *testing.T) {
	assert.Equal(t, rpc.Unary, (&Method{}).Cardinality())
	assert.Equal(t, rpc.ClientStreaming, (&Method{ClientStreaming: true}).Cardinality())
	assert.Equal(t, rpc.ServerStreaming, (&Method{ServerStreaming: true}).Cardinality())
	assert.Equal(t, rpc.Bidi, (&Method{ClientStreaming: true, ServerStreaming: true}).Cardinality())
}

func TestManifest_EncodeDecode(t *testing.T) {
	m := &Manifest{}
	assert.True(t, m.record(&Service{Name: "A", Package: "p", File: "p/a.proto", GoImportPath: "example.com/p"}))
	assert.False(t, m.record(&Service{Name: "B", Package: "p", File: "p/a.proto", GoImportPath: "example.com/p"}))
	assert.True(t, m.record(&Service{Name: "C", Package: "q", File: "q/c.proto", GoImportPath: "example.com/q"}))

	data, err := m.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "[[package]]")

	got, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	p, ok := got.Lookup("p")
	require.True(t, ok)
	assert.Equal(t, []string{"p/a.proto"}, p.Files)
	assert.Equal(t, []string{"p.A", "p.B"}, p.Services)

	_, ok = got.Lookup("missing")
	assert.False(t, ok)

	_, err = DecodeManifest([]byte("[[package]\n"))
	assert.Error(t, err)
}
