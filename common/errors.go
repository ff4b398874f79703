package common

import "fmt"

// ErrorKind tags a CoreError with the §7 error taxonomy category it belongs to.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindFormat is a malformed source mesh: fatal for the owning mesh.
	KindFormat
	// KindBinding is an animation driver referencing an unknown skeleton parameter: skipped, not fatal.
	KindBinding
	// KindCapacity is a vertex count exceeding the 16-bit bucket-index limit: fatal for the controller.
	KindCapacity
	// KindWarning covers non-fatal conditions (influence overflow, degenerate geometry) that are logged, not returned as hard failures.
	KindWarning
	// KindMissingAttribute is a deform operation whose required upstream element cannot be resolved: fatal for renderer construction.
	KindMissingAttribute
	// KindInvalid marks an asset future that failed construction or was invalidated.
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindFormat:
		return "format"
	case KindBinding:
		return "binding"
	case KindCapacity:
		return "capacity"
	case KindWarning:
		return "warning"
	case KindMissingAttribute:
		return "missing-attribute"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// CoreError is the error value returned across the core's boundaries. It carries a Kind
// tag (§7's error taxonomy) and an optional Source location string, and wraps an
// underlying cause so errors.Is/errors.As still work through it.
type CoreError struct {
	Kind   ErrorKind
	Msg    string
	Source string
	Cause  error
}

func (e *CoreError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Kind, e.Msg, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// NewError builds a CoreError of the given kind with a formatted message and no source location.
func NewError(kind ErrorKind, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewErrorAt builds a CoreError of the given kind carrying a source-location string
// (e.g. a mesh name, chunk tag, or file:line produced by the caller).
func NewErrorAt(kind ErrorKind, source string, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Msg: fmt.Sprintf(format, args...), Source: source}
}

// WrapError wraps an underlying error with a Kind tag, preserving it for errors.Unwrap.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}
