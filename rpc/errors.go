package rpc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ServiceError.
type ErrorKind int

const (
	// KindEncode means a value could not be serialized into a frame.
	KindEncode ErrorKind = iota + 1
	// KindDecode means a frame could not be deserialized into a value.
	KindDecode
	// KindMethodNotFound means the service has no method with the requested name.
	KindMethodNotFound
	// KindServiceNotFound means no service is registered under the requested name.
	KindServiceNotFound
	// KindMethod wraps a failure raised by user logic.
	KindMethod
	// KindStreamLength means a single-item side carried the wrong number of items.
	KindStreamLength
)

// String returns the kind name used in logs and on the wire.
func (k ErrorKind) String() string {
	switch k {
	case KindEncode:
		return "encode"
	case KindDecode:
		return "decode"
	case KindMethodNotFound:
		return "method_not_found"
	case KindServiceNotFound:
		return "service_not_found"
	case KindMethod:
		return "method"
	case KindStreamLength:
		return "stream_length"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ParseErrorKind is the inverse of ErrorKind.String. It returns 0 for unknown names.
func ParseErrorKind(s string) ErrorKind {
	for k := KindEncode; k <= KindStreamLength; k++ {
		if k.String() == s {
			return k
		}
	}
	return 0
}

// ServiceError is the single error type produced by the adaptation layer.
// Use errors.Is with the Err* sentinels to test the kind and errors.As to
// read the details.
type ServiceError struct {
	Kind ErrorKind

	// Service and Method name the call when known.
	Service string
	Method  string

	// Want and Got are set for KindStreamLength.
	Want int
	Got  int

	// Index is the stream position of an encode or decode failure, or -1
	// when the failure is not tied to a position.
	Index int

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. They match any ServiceError of the same kind.
var (
	ErrEncode          = &ServiceError{Kind: KindEncode, Index: -1}
	ErrDecode          = &ServiceError{Kind: KindDecode, Index: -1}
	ErrMethodNotFound  = &ServiceError{Kind: KindMethodNotFound, Index: -1}
	ErrServiceNotFound = &ServiceError{Kind: KindServiceNotFound, Index: -1}
	ErrMethod          = &ServiceError{Kind: KindMethod, Index: -1}
	ErrStreamLength    = &ServiceError{Kind: KindStreamLength, Index: -1}
)

func (e *ServiceError) Error() string {
	switch e.Kind {
	case KindEncode, KindDecode:
		msg := e.Kind.String() + " error"
		if e.Index >= 0 {
			msg = fmt.Sprintf("%s at frame %d", msg, e.Index)
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case KindMethodNotFound:
		if e.Method != "" {
			return fmt.Sprintf("method not found: %s", e.qualifiedMethod())
		}
		return "method not found"
	case KindServiceNotFound:
		if e.Service != "" {
			return fmt.Sprintf("service not found: %s", e.Service)
		}
		return "service not found"
	case KindMethod:
		if e.Err != nil {
			return "method error: " + e.Err.Error()
		}
		return "method error"
	case KindStreamLength:
		return fmt.Sprintf("stream length error: want %d item(s), got %d", e.Want, e.Got)
	default:
		return e.Kind.String()
	}
}

func (e *ServiceError) qualifiedMethod() string {
	if e.Service == "" {
		return e.Method
	}
	return e.Service + "/" + e.Method
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error { return e.Err }

// Is reports whether target is a ServiceError of the same kind.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// EncodeError wraps a serialization failure at stream position index (-1 if none).
func EncodeError(index int, err error) *ServiceError {
	return &ServiceError{Kind: KindEncode, Index: index, Err: err}
}

// DecodeError wraps a deserialization failure at stream position index (-1 if none).
func DecodeError(index int, err error) *ServiceError {
	return &ServiceError{Kind: KindDecode, Index: index, Err: err}
}

// MethodNotFound reports an unknown method on service.
func MethodNotFound(service, method string) *ServiceError {
	return &ServiceError{Kind: KindMethodNotFound, Service: service, Method: method, Index: -1}
}

// ServiceNotFound reports an unknown service.
func ServiceNotFound(service string) *ServiceError {
	return &ServiceError{Kind: KindServiceNotFound, Service: service, Index: -1}
}

// StreamLengthError reports a single-item side that carried got items.
func StreamLengthError(want, got int) *ServiceError {
	return &ServiceError{Kind: KindStreamLength, Want: want, Got: got, Index: -1}
}

// MethodError wraps a failure from user logic. Errors that already are a
// ServiceError are returned unchanged.
func MethodError(err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Kind: KindMethod, Index: -1, Err: err}
}

// KindOf returns the kind of the first ServiceError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
