package gen

import (
	"errors"
	"fmt"
)

// Sentinel errors for generation failures.
var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrInvalidState  = errors.New("invalid composer state")
	ErrNoGenerators  = errors.New("no generators configured")
	ErrNoInputFiles  = errors.New("no input files")
)

// ValidationError reports a schema that cannot be turned into bindings.
type ValidationError struct {
	Service string
	Method  string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s/%s: %s", e.Service, e.Method, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidSchema.
func (e *ValidationError) Unwrap() error { return ErrInvalidSchema }
