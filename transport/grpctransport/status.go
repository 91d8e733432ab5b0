package grpctransport

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/shhac/nrpc/rpc"
)

// errorDomain marks ErrorInfo details that carry a ServiceError.
const errorDomain = "nrpc"

// codeFor maps an error kind to the closest gRPC code.
func codeFor(kind rpc.ErrorKind) codes.Code {
	switch kind {
	case rpc.KindEncode:
		return codes.Internal
	case rpc.KindDecode, rpc.KindStreamLength:
		return codes.InvalidArgument
	case rpc.KindMethodNotFound, rpc.KindServiceNotFound:
		return codes.Unimplemented
	default:
		return codes.Unknown
	}
}

// ToStatus converts err into a gRPC status. ServiceErrors keep their kind
// and details in an ErrorInfo so the other side can rebuild them.
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	var se *rpc.ServiceError
	if !errors.As(err, &se) {
		if st, ok := status.FromError(err); ok {
			return st
		}
		switch {
		case errors.Is(err, context.Canceled):
			return status.New(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return status.New(codes.DeadlineExceeded, err.Error())
		}
		return status.New(codes.Unknown, err.Error())
	}

	code := codeFor(se.Kind)
	if se.Kind == rpc.KindMethod && se.Err != nil {
		if inner, ok := status.FromError(se.Err); ok && inner.Code() != codes.Unknown {
			code = inner.Code()
		}
	}

	info := &errdetails.ErrorInfo{
		Reason: strings.ToUpper(se.Kind.String()),
		Domain: errorDomain,
		Metadata: map[string]string{
			"service": se.Service,
			"method":  se.Method,
			"want":    strconv.Itoa(se.Want),
			"got":     strconv.Itoa(se.Got),
			"index":   strconv.Itoa(se.Index),
		},
	}
	if se.Err != nil {
		info.Metadata["cause"] = se.Err.Error()
	}

	st := status.New(code, se.Error())
	if withDetails, derr := st.WithDetails(info); derr == nil {
		return withDetails
	}
	return st
}

// FromStatus rebuilds the ServiceError carried by a gRPC status error.
// Errors without nrpc details are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		kind := rpc.ParseErrorKind(strings.ToLower(info.GetReason()))
		if kind == 0 {
			continue
		}
		md := info.GetMetadata()
		se := &rpc.ServiceError{
			Kind:    kind,
			Service: md["service"],
			Method:  md["method"],
			Want:    atoi(md["want"]),
			Got:     atoi(md["got"]),
			Index:   atoi(md["index"]),
		}
		if cause, ok := md["cause"]; ok {
			se.Err = errors.New(cause)
		}
		return se
	}
	return err
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
