// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// RuntimeError wraps an error that escaped every try/catch in a program,
// attaching the VM call-stack snapshot captured at the point it escaped
// and a Go stack trace from github.com/pkg/errors for host-side
// diagnostics. wrapEscaping applies this exactly once per error, at the
// frame where it finally goes uncaught, so an error rethrown through
// several frames doesn't accumulate redundant wrapping.
type RuntimeError struct {
	cause error
	trace []string
}

// newRuntimeError wraps cause with a captured Go stack trace and the
// given JS call-stack snapshot, innermost frame first.
func newRuntimeError(cause error, trace []string) *RuntimeError {
	return &RuntimeError{cause: pkgerrors.WithStack(cause), trace: trace}
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if len(e.trace) == 0 {
		return e.cause.Error()
	}
	return fmt.Sprintf("%v\n%s", e.cause, strings.Join(e.trace, "\n"))
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *RuntimeError) Unwrap() error { return e.cause }

// Cause returns the original error before RuntimeError's stack trace was
// attached.
func (e *RuntimeError) Cause() error { return e.cause }

// StackTrace returns the VM call stack at the moment this error escaped,
// innermost frame first.
func (e *RuntimeError) StackTrace() []string { return e.trace }
