package rpc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/shhac/nrpc/stream"
)

// greeterTypes holds codecs for the helloworld fixture messages, built
// dynamically from the .proto source.
type greeterTypes struct {
	request protoreflect.MessageDescriptor
	reply   protoreflect.MessageDescriptor
	reqC    Codec[*dynamicpb.Message]
	replyC  Codec[*dynamicpb.Message]
}

func loadGreeter(t *testing.T) *greeterTypes {
	t.Helper()
	p := protoparse.Parser{ImportPaths: []string{"../testdata/protos"}}
	fds, err := p.ParseFiles("helloworld/helloworld.proto")
	require.NoError(t, err)
	require.Len(t, fds, 1)

	req := fds[0].FindMessage("helloworld.HelloRequest")
	reply := fds[0].FindMessage("helloworld.HelloReply")
	require.NotNil(t, req)
	require.NotNil(t, reply)

	g := &greeterTypes{request: req.UnwrapMessage(), reply: reply.UnwrapMessage()}
	g.reqC = NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(g.request) })
	g.replyC = NewProtoCodec(func() *dynamicpb.Message { return dynamicpb.NewMessage(g.reply) })
	return g
}

func (g *greeterTypes) newRequest(name string) *dynamicpb.Message {
	m := dynamicpb.NewMessage(g.request)
	m.Set(g.request.Fields().ByName("name"), protoreflect.ValueOfString(name))
	return m
}

func (g *greeterTypes) newReply(message string) *dynamicpb.Message {
	m := dynamicpb.NewMessage(g.reply)
	m.Set(g.reply.Fields().ByName("message"), protoreflect.ValueOfString(message))
	return m
}

func (g *greeterTypes) name(m *dynamicpb.Message) string {
	return m.Get(g.request.Fields().ByName("name")).String()
}

func (g *greeterTypes) message(m *dynamicpb.Message) string {
	return m.Get(g.reply.Fields().ByName("message")).String()
}

// newGreeterService mirrors what the generator emits for the Greeter service.
func (g *greeterTypes) newGreeterService() *Dispatcher {
	return NewDispatcher("helloworld.Greeter",
		UnaryMethod("say_hello", g.reqC, g.replyC,
			func(_ context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
				return g.newReply("Hello " + g.name(req)), nil
			}),
		ClientStreamMethod("say_hello_many_to_one", g.reqC, g.replyC,
			func(_ context.Context, reqs stream.Stream[*dynamicpb.Message]) (*dynamicpb.Message, error) {
				var names []string
				for req, err := range stream.All(reqs) {
					if err != nil {
						return nil, err
					}
					names = append(names, g.name(req))
				}
				return g.newReply("Hello " + strings.Join(names, ", ")), nil
			}),
		ServerStreamMethod("say_hello_one_to_many", g.reqC, g.replyC,
			func(_ context.Context, req *dynamicpb.Message) (stream.Stream[*dynamicpb.Message], error) {
				i := 0
				return stream.Func(func() (*dynamicpb.Message, error) {
					if i == 3 {
						return nil, io.EOF
					}
					i++
					return g.newReply(fmt.Sprintf("Hello %s #%d", g.name(req), i)), nil
				}), nil
			}),
		BidiMethod("say_hello_many_to_many", g.reqC, g.replyC,
			func(_ context.Context, reqs stream.Stream[*dynamicpb.Message]) (stream.Stream[*dynamicpb.Message], error) {
				return stream.Map(reqs, func(_ int, req *dynamicpb.Message) (*dynamicpb.Message, error) {
					return g.newReply("Hello " + g.name(req)), nil
				}), nil
			}),
	)
}

func greeterEndpoint(method string) Endpoint {
	return Endpoint{Package: "helloworld", Service: "Greeter", Method: method}
}

func TestGreeter_SayHello(t *testing.T) {
	g := loadGreeter(t)
	router := NewRouter(nopLogger())
	require.NoError(t, router.Register(g.newGreeterService()))

	resp, err := CallUnary(context.Background(), router, greeterEndpoint("say_hello"), g.reqC, g.replyC, g.newRequest("World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", g.message(resp))
}

func TestGreeter_SayHelloManyToOne(t *testing.T) {
	g := loadGreeter(t)
	router := NewRouter(nopLogger())
	require.NoError(t, router.Register(g.newGreeterService()))

	reqs := stream.FromSlice([]*dynamicpb.Message{
		g.newRequest("World0"),
		g.newRequest("World1"),
		g.newRequest("World2"),
	})
	resp, err := CallClientStream(context.Background(), router, greeterEndpoint("say_hello_many_to_one"), g.reqC, g.replyC, reqs)
	require.NoError(t, err)
	assert.Equal(t, "Hello World0, World1, World2", g.message(resp))
}

func TestGreeter_StreamingShapes(t *testing.T) {
	g := loadGreeter(t)
	router := NewRouter(nopLogger())
	require.NoError(t, router.Register(g.newGreeterService()))
	ctx := context.Background()

	out, err := CallServerStream(ctx, router, greeterEndpoint("say_hello_one_to_many"), g.reqC, g.replyC, g.newRequest("Ada"))
	require.NoError(t, err)
	replies, err := stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Equal(t, "Hello Ada #1", g.message(replies[0]))
	assert.Equal(t, "Hello Ada #3", g.message(replies[2]))

	reqs := stream.FromSlice([]*dynamicpb.Message{g.newRequest("a"), g.newRequest("b")})
	out, err = CallBidi(ctx, router, greeterEndpoint("say_hello_many_to_many"), g.reqC, g.replyC, reqs)
	require.NoError(t, err)
	replies, err = stream.Collect(out)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "Hello a", g.message(replies[0]))
	assert.Equal(t, "Hello b", g.message(replies[1]))
}

func TestGreeter_UnaryWithoutInput(t *testing.T) {
	g := loadGreeter(t)
	svc := g.newGreeterService()

	out, err := svc.Call(context.Background(), "say_hello", stream.Empty[[]byte]())
	assert.Nil(t, out)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindStreamLength, se.Kind)
	assert.Equal(t, 1, se.Want)
	assert.Equal(t, 0, se.Got)
}
