// Package perr defines the planner's error taxonomy: a small, closed set of
// Kinds distinguished by errors.Is, each carrying the model/field/capability
// context needed to explain a planning failure without a type assertion at
// every call site.
package perr

import (
	"errors"
	"fmt"
)

// Kind classifies why planning or lowering failed.
type Kind int

const (
	// KindSchemaViolation means the statement references a model, field or
	// relation the Schema does not declare.
	KindSchemaViolation Kind = iota
	// KindTypeMismatch means two expressions compared or assigned to each
	// other resolve to incompatible Types.
	KindTypeMismatch
	// KindUnsupported means the statement shape is well-formed but this
	// planner build does not implement it (e.g. a set operation the
	// materialization planner has no node for yet).
	KindUnsupported
	// KindCapabilityGap means the target backend's Capability lacks a
	// feature the statement requires (e.g. ReturningFromMutation on a
	// backend that can't return rows from an UPDATE).
	KindCapabilityGap
	// KindConflict means the statement, if executed, would violate a
	// uniqueness or referential constraint the planner can prove statically
	// (e.g. two insert rows colliding on the same unique index key).
	KindConflict
	// KindDriverError wraps a failure reported by a driver during plan
	// execution (query error, connection error, constraint violation
	// surfaced at the database).
	KindDriverError
)

func (k Kind) String() string {
	switch k {
	case KindSchemaViolation:
		return "schema violation"
	case KindTypeMismatch:
		return "type mismatch"
	case KindUnsupported:
		return "unsupported"
	case KindCapabilityGap:
		return "capability gap"
	case KindConflict:
		return "conflict"
	case KindDriverError:
		return "driver error"
	default:
		return "unknown"
	}
}

// Error is the planner's error type. Model and Field are optional context;
// Cause is the wrapped underlying error, if any.
type Error struct {
	Kind    Kind
	Model   string
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Model != "" && e.Field != "":
		where = fmt.Sprintf(" (%s.%s)", e.Model, e.Field)
	case e.Model != "":
		where = fmt.Sprintf(" (%s)", e.Model)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s: %v", e.Kind, where, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, where, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, perr.New(perr.KindCapabilityGap, "")) to test for a
// category without inspecting Model/Field/Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no model/field context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithModel attaches model context to e and returns e for chaining.
func (e *Error) WithModel(model string) *Error {
	e.Model = model
	return e
}

// WithField attaches model and field context to e and returns e for
// chaining.
func (e *Error) WithField(model, field string) *Error {
	e.Model = model
	e.Field = field
	return e
}

// WithCause attaches the underlying cause to e and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf unwraps err looking for a *Error and reports its Kind, or false if
// err is not (and does not wrap) a planner error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// Is reports whether err is a planner error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
