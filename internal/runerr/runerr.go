// Package runerr defines the typed failures a solver run can end with.
//
// Every failure is fatal: the engine is a lockstep system with no retries, so
// the kind only decides how the failure is reported and which exit code the
// CLI uses.
package runerr

import (
	"errors"
	"fmt"
)

// Kind classifies a run-ending failure.
type Kind int

const (
	// Configuration covers invalid block sizes, domains and lane layouts.
	Configuration Kind = iota + 1
	// Resource covers missing or unusable devices.
	Resource
	// Computation covers kernel failures and non-finite values.
	Computation
	// Communication covers unreachable peers, size mismatches and aborts.
	Communication
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Resource:
		return "resource"
	case Computation:
		return "computation"
	case Communication:
		return "communication"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a failure tagged with its kind and the operation that raised it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with an
// empty Op matches any operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op) && t.Err == nil
}

// New builds an *Error of the given kind from a formatted message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind and op. Errors that already carry a kind keep it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or 0 when err is untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
