package rpc

// Cardinality is the call shape of a method, derived from its two streaming
// flags. The low bit is client streaming and the high bit server streaming.
type Cardinality uint8

const (
	Unary           Cardinality = 0b00 // 1 → 1
	ClientStreaming Cardinality = 0b01 // many → 1
	ServerStreaming Cardinality = 0b10 // 1 → many
	Bidi            Cardinality = 0b11 // many → many
)

// CardinalityOf returns the shape for the given streaming flags.
func CardinalityOf(clientStreaming, serverStreaming bool) Cardinality {
	var c Cardinality
	if clientStreaming {
		c |= ClientStreaming
	}
	if serverStreaming {
		c |= ServerStreaming
	}
	return c
}

// IsClientStreaming reports whether the input side carries many items.
func (c Cardinality) IsClientStreaming() bool { return c&ClientStreaming != 0 }

// IsServerStreaming reports whether the output side carries many items.
func (c Cardinality) IsServerStreaming() bool { return c&ServerStreaming != 0 }

func (c Cardinality) String() string {
	switch c & Bidi {
	case ClientStreaming:
		return "ClientStream"
	case ServerStreaming:
		return "ServerStream"
	case Bidi:
		return "BidiStream"
	default:
		return "Unary"
	}
}
