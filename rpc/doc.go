// Package rpc is the runtime that generated nrpc bindings compile against.
//
// Every method, whatever its shape, is carried by one transport primitive:
// a call that takes a stream of opaque frames and returns a stream of opaque
// frames, addressed by service and method name. The four shapes differ only
// in how many items each side carries:
//
//	Unary            1 → 1
//	ClientStreaming  many → 1
//	ServerStreaming  1 → many
//	Bidi             many → many
//
// The Serve* and Call* functions adapt typed handlers and typed calls onto
// that primitive. Sides that carry many items are wrapped lazily, so a value
// is decoded or encoded only when it is pulled. Sides that carry one item are
// checked: an empty side fails with a StreamLength error, and so does a side
// with more than one item.
//
// Transports implement ClientHandler on the calling side and drive a
// ServerService on the serving side. Router implements ClientHandler
// in-process over any number of registered services.
package rpc
