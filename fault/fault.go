// Package fault classifies generator failures so callers can tell a broken
// parameter set from a failing external tool or an unwritable output folder.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a failure class. Kinds are strings so they read well in logs and JSON.
type Kind string

const (
	// ExternalToolFailure: gmsh, ElmerGrid or ElmerSolver could not be started,
	// exited non-zero or timed out.
	ExternalToolFailure Kind = "EXTERNAL_TOOL_FAILURE"

	// InvalidParameter: the parameter set is inconsistent.
	InvalidParameter Kind = "INVALID_PARAMETER"

	// IOFailure: reading or writing a local file or directory failed.
	IOFailure Kind = "IO_FAILURE"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Invalid(op, format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidParameter, Op: op, Err: fmt.Errorf(format, args...)}
}

func Tool(op string, err error) *Error {
	return &Error{Kind: ExternalToolFailure, Op: op, Err: err}
}

func IO(op string, err error) *Error {
	return &Error{Kind: IOFailure, Op: op, Err: err}
}

// KindOf returns the kind of the first fault in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err carries a fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
