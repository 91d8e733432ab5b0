package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/status"

	"github.com/shhac/nrpc/gen"
	"github.com/shhac/nrpc/rpc"
)

// Severity indicates how bad an error is for the person running a command.
type Severity int

const (
	SeverityInfo    Severity = iota // User should know, not a failure
	SeverityWarning                 // Partial result
	SeverityError                   // Command failed, can retry
	SeverityFatal                   // Configuration must change
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "error"
	}
}

// Exit codes returned by the command line tools.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// CLIError wraps an error with presentation metadata for terminal output.
type CLIError struct {
	Err      error
	Severity Severity
	Title    string   // Short summary
	Message  string   // One sentence explanation
	Recovery []string // Suggested next steps
	Details  string   // Technical details, shown with --verbose
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Title
}

// Unwrap returns the underlying error.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// Format renders the error for a terminal.
func (e *CLIError) Format(verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", e.Title, e.Message)
	for _, r := range e.Recovery {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	if verbose && e.Details != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Details)
	}
	return b.String()
}

// Classify converts an error into a CLIError with a title, message,
// recovery suggestions and an exit code.
func Classify(err error) *CLIError {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return &CLIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Timeout",
			Message:  "The operation took too long.",
			Recovery: []string{"Try again", "Increase --timeout"},
			Details:  err.Error(),
			ExitCode: ExitFailure,
		}

	case errors.Is(err, context.Canceled):
		return &CLIError{
			Err:      err,
			Severity: SeverityInfo,
			Title:    "Cancelled",
			Message:  "The operation was cancelled.",
			ExitCode: ExitFailure,
		}

	case errors.Is(err, ErrConnectionFailed):
		return &CLIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Connection Failed",
			Message:  "Unable to connect to the server.",
			Recovery: []string{
				"Check that the server is running",
				"Verify the address and port",
				"Check the --tls setting",
			},
			Details:  err.Error(),
			ExitCode: ExitFailure,
		}

	case errors.Is(err, ErrReflectionUnavailable):
		return &CLIError{
			Err:      err,
			Severity: SeverityWarning,
			Title:    "Reflection Not Available",
			Message:  "The server does not expose the reflection service.",
			Recovery: []string{"Pass the .proto files with --proto instead"},
			Details:  err.Error(),
			ExitCode: ExitFailure,
		}

	case errors.Is(err, ErrInvalidDescriptor):
		return &CLIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Invalid Descriptor",
			Message:  "The server returned descriptors that could not be used.",
			Recovery: []string{"Pass the .proto files with --proto instead"},
			Details:  err.Error(),
			ExitCode: ExitFailure,
		}

	case errors.Is(err, gen.ErrNoInputFiles):
		return &CLIError{
			Err:      err,
			Severity: SeverityFatal,
			Title:    "No Input",
			Message:  "No .proto files were given.",
			Recovery: []string{"Pass files as arguments", "List them under files in nrpc.toml"},
			ExitCode: ExitUsage,
		}

	case errors.Is(err, gen.ErrNoGenerators):
		return &CLIError{
			Err:      err,
			Severity: SeverityFatal,
			Title:    "Nothing To Generate",
			Message:  "Both the client and the server surfaces are disabled.",
			Recovery: []string{"Drop --no-client or --no-server"},
			ExitCode: ExitUsage,
		}

	case errors.Is(err, gen.ErrInvalidSchema):
		return &CLIError{
			Err:      err,
			Severity: SeverityError,
			Title:    "Invalid Schema",
			Message:  "The .proto sources could not be turned into bindings.",
			Recovery: []string{"Fix the reported file and run again"},
			Details:  err.Error(),
			ExitCode: ExitFailure,
		}
	}

	var se *rpc.ServiceError
	if errors.As(err, &se) {
		return classifyServiceError(err, se)
	}

	var validationErr ValidationError
	if errors.As(err, &validationErr) {
		return &CLIError{
			Err:      err,
			Severity: SeverityFatal,
			Title:    "Invalid Argument",
			Message:  validationErr.Error(),
			Recovery: []string{"Correct the value and run again"},
			ExitCode: ExitUsage,
		}
	}
	if errors.Is(err, ErrInvalidInput) {
		return &CLIError{
			Err:      err,
			Severity: SeverityFatal,
			Title:    "Invalid Input",
			Message:  err.Error(),
			Recovery: []string{"Check the request JSON against the input message"},
			ExitCode: ExitUsage,
		}
	}

	if _, ok := status.FromError(err); ok {
		return ClassifyGRPCError(err)
	}

	return &CLIError{
		Err:      err,
		Severity: SeverityError,
		Title:    "Unexpected Error",
		Message:  "An unexpected error occurred.",
		Recovery: []string{"Run again with --debug"},
		Details:  err.Error(),
		ExitCode: ExitFailure,
	}
}

func classifyServiceError(err error, se *rpc.ServiceError) *CLIError {
	e := &CLIError{
		Err:      err,
		Severity: SeverityError,
		Details:  se.Error(),
		ExitCode: ExitFailure,
	}
	switch se.Kind {
	case rpc.KindServiceNotFound:
		e.Title = "Service Not Found"
		e.Message = fmt.Sprintf("The server does not serve %s.", se.Service)
		e.Recovery = []string{"Run describe to list the served services"}
	case rpc.KindMethodNotFound:
		e.Title = "Method Not Found"
		e.Message = fmt.Sprintf("%s has no method %s.", se.Service, se.Method)
		e.Recovery = []string{"Check the method name, which is case sensitive"}
	case rpc.KindStreamLength:
		e.Title = "Wrong Number Of Messages"
		e.Message = fmt.Sprintf("Expected %d message(s) but got %d.", se.Want, se.Got)
		e.Recovery = []string{"Send exactly one request to a method that does not stream its input"}
	case rpc.KindEncode, rpc.KindDecode:
		e.Title = "Codec Error"
		e.Message = "A message could not be converted to or from bytes."
		e.Recovery = []string{"Check that both sides use the same schema"}
	default:
		e.Title = "Call Failed"
		e.Message = "The method returned an error."
		if se.Err != nil {
			e.Message = se.Err.Error()
		}
	}
	return e
}
