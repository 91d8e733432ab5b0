package errors

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ClassifyGRPCError converts a gRPC status error, one that did not carry
// an nrpc error kind, into a CLIError.
func ClassifyGRPCError(err error) *CLIError {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return Classify(err)
	}

	details := fmt.Sprintf("gRPC: %s - %s", st.Code(), st.Message())
	if extra := formatStatusDetails(st); extra != "" {
		details += "\n\n" + extra
	}

	e := &CLIError{
		Err:      err,
		Severity: SeverityError,
		Details:  details,
		ExitCode: ExitFailure,
	}
	switch st.Code() {
	case codes.Unavailable:
		e.Title = "Cannot Connect to Server"
		e.Message = "The server is not responding."
		e.Recovery = []string{
			"Check that the server is running",
			"Verify the address and port",
			"Check the --tls setting",
		}
	case codes.DeadlineExceeded:
		e.Title = "Request Timeout"
		e.Message = "The server took too long to respond."
		e.Recovery = []string{"Try again", "Increase --timeout"}
	case codes.Unauthenticated:
		e.Title = "Authentication Required"
		e.Message = "You need to authenticate to access this service."
		e.Recovery = []string{"Add credentials with --header"}
	case codes.PermissionDenied:
		e.Title = "Access Denied"
		e.Message = "You don't have permission to call this method."
	case codes.InvalidArgument:
		e.Title = "Invalid Request"
		e.Message = "The request contains invalid data."
		e.Recovery = []string{"Check field values"}
	case codes.Unimplemented:
		e.Severity = SeverityWarning
		e.Title = "Method Not Available"
		e.Message = "This method is not implemented on the server."
		e.Recovery = []string{"Check method name", "Verify server version"}
	case codes.Internal:
		e.Title = "Server Error"
		e.Message = "The server encountered an unexpected error."
		e.Recovery = []string{"Try again later"}
	case codes.Canceled:
		e.Severity = SeverityInfo
		e.Title = "Request Cancelled"
		e.Message = "The operation was cancelled."
	default:
		e.Title = "Request Failed"
		e.Message = st.Message()
		e.Recovery = []string{"Try again"}
	}
	return e
}

// formatStatusDetails renders the rich error details attached to a status.
func formatStatusDetails(st *status.Status) string {
	details := st.Details()
	if len(details) == 0 {
		return ""
	}

	var sections []string

	for _, detail := range details {
		switch d := detail.(type) {
		case *errdetails.BadRequest:
			if fvs := d.GetFieldViolations(); len(fvs) > 0 {
				var lines []string
				lines = append(lines, "Field Violations:")
				for _, fv := range fvs {
					line := fmt.Sprintf("  %s: %s", fv.GetField(), fv.GetDescription())
					if r := fv.GetReason(); r != "" {
						line += fmt.Sprintf(" (reason: %s)", r)
					}
					lines = append(lines, line)
				}
				sections = append(sections, strings.Join(lines, "\n"))
			}

		case *errdetails.DebugInfo:
			var lines []string
			lines = append(lines, "Debug Info:")
			if d.GetDetail() != "" {
				lines = append(lines, "  "+d.GetDetail())
			}
			for _, entry := range d.GetStackEntries() {
				lines = append(lines, "  "+entry)
			}
			sections = append(sections, strings.Join(lines, "\n"))

		case *errdetails.ErrorInfo:
			var lines []string
			lines = append(lines, fmt.Sprintf("Error Info: %s", d.GetReason()))
			if d.GetDomain() != "" {
				lines = append(lines, fmt.Sprintf("  Domain: %s", d.GetDomain()))
			}
			md := d.GetMetadata()
			for _, k := range slices.Sorted(maps.Keys(md)) {
				lines = append(lines, fmt.Sprintf("  %s: %s", k, md[k]))
			}
			sections = append(sections, strings.Join(lines, "\n"))

		case *errdetails.RetryInfo:
			if delay := d.GetRetryDelay(); delay != nil {
				sections = append(sections, fmt.Sprintf("Retry after: %v", delay.AsDuration()))
			}

		case *errdetails.RequestInfo:
			sections = append(sections, fmt.Sprintf("Request ID: %s", d.GetRequestId()))

		default:
			sections = append(sections, fmt.Sprintf("Detail: %v", detail))
		}
	}

	return strings.Join(sections, "\n\n")
}
