// Package grpctransport carries nrpc calls over gRPC. Every call, whatever
// its shape, is one bidirectional gRPC stream on "/package.Service/method"
// whose messages are the call's frames, passed through untouched.
package grpctransport

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content subtype used for nrpc frames.
const Name = "nrpc"

func init() {
	encoding.RegisterCodec(frameCodec{})
}

// frameCodec moves already-serialized frames without touching them.
type frameCodec struct{}

func (frameCodec) Name() string { return Name }

func (frameCodec) Marshal(v any) ([]byte, error) {
	switch f := v.(type) {
	case []byte:
		return f, nil
	case *[]byte:
		return *f, nil
	default:
		return nil, fmt.Errorf("nrpc codec: cannot marshal %T", v)
	}
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("nrpc codec: cannot unmarshal into %T", v)
	}
	*p = append([]byte(nil), data...)
	return nil
}

// protoWire presents frames as ordinary protobuf messages. Frames produced by
// protobuf codecs already are, so any gRPC server can serve them.
type protoWire struct{ frameCodec }

func (protoWire) Name() string { return "proto" }
