package diag

import (
	"fmt"
	stderrors "errors"

	"github.com/pkg/errors"
)

// InternalError wraps a lowering/codegen-stage failure with a captured
// stack trace via github.com/pkg/errors — the propagation policy of
// spec.md §7: "each lowering/codegen stage short-circuits on its first
// hard failure". Unlike Diagnostic, InternalError is never collected; it
// aborts the current compilation.
type InternalError struct {
	Kind  Kind
	cause error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *InternalError) Unwrap() error { return e.cause }

// Internal wraps message with a stack trace and tags it with kind.
func Internal(kind Kind, format string, args ...any) error {
	return &InternalError{Kind: kind, cause: errors.Errorf(format, args...)}
}

// Wrap re-tags an existing error as an internal compiler error of kind,
// preserving its stack trace if it already carries one.
func Wrap(kind Kind, err error, context string) error {
	return &InternalError{Kind: kind, cause: errors.Wrap(err, context)}
}

// StackTrace exposes the underlying pkg/errors stack, if present, for
// driver-level crash reports.
func StackTrace(err error) errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	var st stackTracer
	if stderrors.As(err, &st) {
		return st.StackTrace()
	}
	return nil
}
