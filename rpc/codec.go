package rpc

import (
	"google.golang.org/protobuf/proto"
)

// Codec converts between typed values and frames.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(frame []byte) (T, error)
}

type protoCodec[T proto.Message] struct {
	newMsg func() T
}

// ProtoCodec returns a protobuf codec for the generated message type T.
// T must be a pointer to a generated message struct; use NewProtoCodec for
// dynamic messages.
func ProtoCodec[T proto.Message]() Codec[T] {
	var zero T
	mt := zero.ProtoReflect().Type()
	return protoCodec[T]{newMsg: func() T { return mt.New().Interface().(T) }}
}

// NewProtoCodec returns a protobuf codec that decodes into messages from newMsg.
func NewProtoCodec[T proto.Message](newMsg func() T) Codec[T] {
	return protoCodec[T]{newMsg: newMsg}
}

func (c protoCodec[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c protoCodec[T]) Decode(frame []byte) (T, error) {
	m := c.newMsg()
	if err := proto.Unmarshal(frame, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
