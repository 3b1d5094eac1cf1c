package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLifetime Phase = "lifetime" // handle and lifetime bookkeeping
	PhaseVM       Phase = "vm"       // handle facade operations
	PhaseRuntime  Phase = "runtime"  // manager and VM creation
	PhaseDispatch Phase = "dispatch" // engine to host callbacks
	PhaseMarshal  Phase = "marshal"  // argument arrays and strings in linear memory
	PhaseEngine   Phase = "engine"   // calls across the engine boundary
	PhaseLoad     Phase = "load"     // wasm module loading
	PhaseHost     Phase = "host"     // host function adaptation
	PhaseConfig   Phase = "config"   // configuration validation
)

// Kind categorizes the error
type Kind string

const (
	KindDisposed        Kind = "disposed"
	KindOwnership       Kind = "ownership"
	KindNotInitialized  Kind = "not_initialized"
	KindAlreadyExists   Kind = "already_exists"
	KindNotFound        Kind = "not_found"
	KindContextMismatch Kind = "context_mismatch"
	KindInvalidInput    Kind = "invalid_input"
	KindTypeMismatch    Kind = "type_mismatch"
	KindAllocation      Kind = "allocation"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindEngineCall      Kind = "engine_call"
	KindMissingExport   Kind = "missing_export"
	KindInstantiation   Kind = "instantiation"
	KindInvalidData     Kind = "invalid_data"
	KindOverflow        Kind = "overflow"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrDisposed         = &Error{Phase: PhaseLifetime, Kind: KindDisposed}
	ErrOwnership        = &Error{Phase: PhaseVM, Kind: KindOwnership}
	ErrNotInitialized   = &Error{Phase: PhaseRuntime, Kind: KindNotInitialized}
	ErrManagerExists    = &Error{Phase: PhaseRuntime, Kind: KindAlreadyExists}
	ErrContextMismatch  = &Error{Phase: PhaseDispatch, Kind: KindContextMismatch}
	ErrCallbackNotFound = &Error{Phase: PhaseDispatch, Kind: KindNotFound}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the path (export name, property key, argument index)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Disposed reports use of a lifetime after it was disposed.
func Disposed(what string) *Error {
	return &Error{
		Phase:  PhaseLifetime,
		Kind:   KindDisposed,
		Detail: fmt.Sprintf("%s is not alive", what),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("value %v overflows %s", value, goType),
		Value:  value,
	}
}

// Ownership reports a handle passed to a VM that did not create it.
func Ownership(detail string) *Error {
	return &Error{
		Phase:  PhaseVM,
		Kind:   KindOwnership,
		Detail: detail,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// AlreadyExists creates an error for a second instance of a process-wide singleton.
func AlreadyExists(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyExists,
		Detail: fmt.Sprintf("%s already exists", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, key any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %v not found", what, key),
		Value:  key,
	}
}

// ContextMismatch reports a callback delivered to a VM with a different context.
func ContextMismatch(want, got any) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindContextMismatch,
		Detail: fmt.Sprintf("callback for %v delivered to VM with %v", got, want),
		Value:  got,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access at offset %d length %d out of bounds", offset, length),
		Value:  offset,
	}
}

// EngineCall wraps a failure returned by an engine primitive.
func EngineCall(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindEngineCall,
		Path:   []string{export},
		Detail: "engine call failed",
		Cause:  cause,
	}
}

// MissingExport reports a required export absent from the engine module.
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Path:   []string{name},
		Detail: fmt.Sprintf("function %s not found in wasm module", name),
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
