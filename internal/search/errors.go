package search

import "fmt"

// ExecErrorKind identifies the class of execution failure.
type ExecErrorKind string

const (
	// UnknownField means a query referenced a field the index does not
	// know. Only surfaced in strict mode; the default treats it as zero
	// matches.
	UnknownField ExecErrorKind = "unknown_field"
)

// ExecError is a structured execution failure.
type ExecError struct {
	Kind  ExecErrorKind
	Field string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution error: %s %q", e.Kind, e.Field)
}
