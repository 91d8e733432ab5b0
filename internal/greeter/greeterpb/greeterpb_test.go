package greeterpb_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/shhac/nrpc/internal/greeter"
	"github.com/shhac/nrpc/internal/greeter/greeterpb"
	"github.com/shhac/nrpc/internal/logging"
	"github.com/shhac/nrpc/rpc"
	"github.com/shhac/nrpc/stream"
)

func newClients(t *testing.T) (*greeterpb.Clients, *rpc.Router) {
	t.Helper()
	r := rpc.NewRouter(logging.NewNopLogger())
	servers := &greeterpb.Servers{Greeter: greeter.Server{}}
	require.NoError(t, servers.Register(r))
	return greeterpb.NewClients(r), r
}

func names(n int) stream.Stream[*wrapperspb.StringValue] {
	var out []*wrapperspb.StringValue
	for i := range n {
		out = append(out, wrapperspb.String(fmt.Sprintf("World%d", i)))
	}
	return stream.FromSlice(out)
}

func values(t *testing.T, s stream.Stream[*wrapperspb.StringValue]) []string {
	t.Helper()
	items, err := stream.Collect(s)
	require.NoError(t, err)
	var out []string
	for _, v := range items {
		out = append(out, v.GetValue())
	}
	return out
}

func TestGeneratedBindings_RoundTrip(t *testing.T) {
	clients, _ := newClients(t)
	c := clients.Greeter
	ctx := context.Background()

	assert.Equal(t, "greeter.Greeter", c.Descriptor())

	resp, err := c.SayHello(ctx, wrapperspb.String("World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", resp.GetValue())

	resp, err = c.SayHelloManyToOne(ctx, names(3))
	require.NoError(t, err)
	assert.Equal(t, "Hello World0, World1, World2", resp.GetValue())

	out, err := c.SayHelloOneToMany(ctx, wrapperspb.String("Ann"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello Ann", "Goodbye Ann"}, values(t, out))

	out, err = c.SayHelloManyToMany(ctx, names(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi World0", "Hi World1", "Hi World2"}, values(t, out))
}

func TestGeneratedBindings_UnaryNeedsOneRequest(t *testing.T) {
	_, r := newClients(t)
	ep := rpc.Endpoint{Package: "greeter", Service: "Greeter", Method: "say_hello"}
	codec := rpc.ProtoCodec[*wrapperspb.StringValue]()

	_, err := rpc.CallClientStream(context.Background(), r, ep, codec, codec, names(0))
	var serr *rpc.ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, rpc.KindStreamLength, serr.Kind)
	assert.Equal(t, 1, serr.Want)
	assert.Equal(t, 0, serr.Got)
}

func TestGeneratedBindings_MethodNotFound(t *testing.T) {
	_, r := newClients(t)

	out, err := r.Call(context.Background(), "greeter", "Greeter", "say_goodbye", stream.Empty[[]byte]())
	assert.ErrorIs(t, err, rpc.ErrMethodNotFound)
	assert.Nil(t, out)
}

func TestServers_Register(t *testing.T) {
	r := rpc.NewRouter(logging.NewNopLogger())
	require.NoError(t, (&greeterpb.Servers{}).Register(r), "nil implementations are skipped")
	assert.Empty(t, r.Services())

	servers := &greeterpb.Servers{Greeter: greeter.Server{}}
	require.NoError(t, servers.Register(r))
	assert.Equal(t, []string{"greeter.Greeter"}, r.Services())
	assert.Error(t, servers.Register(r), "a service registers once per router")
}

func TestNewGreeterService_Methods(t *testing.T) {
	d := greeterpb.NewGreeterService(greeter.Server{})
	assert.Equal(t, "greeter.Greeter", d.Descriptor())

	var got []string
	for _, m := range d.Methods() {
		got = append(got, m.Name+" "+m.Cardinality.String())
	}
	assert.Equal(t, []string{
		"say_hello Unary",
		"say_hello_many_to_one ClientStream",
		"say_hello_one_to_many ServerStream",
		"say_hello_many_to_many BidiStream",
	}, got)
}
