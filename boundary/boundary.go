// Package boundary defines the procedural contract between the host and the
// JavaScript engine.
//
// The engine is opaque: everything crosses the boundary as an address into
// the engine's linear memory. Implementations must be called from a single
// goroutine; the host may re-enter the boundary from inside a HostCallback.
package boundary

import (
	"context"
	"fmt"

	"github.com/wippyai/jsvm"
)

// RuntimePtr is the address of an engine runtime.
// A runtime owns the engine heap and can host several contexts.
type RuntimePtr uint32

// IsNull reports whether the pointer is null (zero).
func (p RuntimePtr) IsNull() bool { return p == 0 }

func (p RuntimePtr) String() string { return fmt.Sprintf("RuntimePtr(0x%x)", uint32(p)) }

// ContextPtr is the address of an engine context (a realm with its own global object).
type ContextPtr uint32

// IsNull reports whether the pointer is null (zero).
func (p ContextPtr) IsNull() bool { return p == 0 }

func (p ContextPtr) String() string { return fmt.Sprintf("ContextPtr(0x%x)", uint32(p)) }

// ValuePtr is the address of one engine value.
type ValuePtr uint32

// IsNull reports whether the pointer is null (zero).
func (p ValuePtr) IsNull() bool { return p == 0 }

func (p ValuePtr) String() string { return fmt.Sprintf("ValuePtr(0x%x)", uint32(p)) }

// ArgvPtr is the address of a contiguous argument array handed to a host callback.
type ArgvPtr uint32

// IsNull reports whether the pointer is null (zero).
func (p ArgvPtr) IsNull() bool { return p == 0 }

func (p ArgvPtr) String() string { return fmt.Sprintf("ArgvPtr(0x%x)", uint32(p)) }

// HostCallback is the single trampoline the engine invokes whenever guest
// code calls a host function. data is the value the function was created
// with in NewFunction. Returning 0 means undefined. The returned value is
// taken over by the engine.
type HostCallback func(ctx context.Context, c ContextPtr, this ValuePtr, argc int32, argv ArgvPtr, data ValuePtr) ValuePtr

// DefineArgs mirrors the engine's property definition primitive.
// Get and Set hold the undefined address when absent.
type DefineArgs struct {
	Value        ValuePtr
	Get          ValuePtr
	Set          ValuePtr
	Configurable bool
	Enumerable   bool
	HasValue     bool
}

// Transport moves raw bytes in and out of the engine's linear memory.
type Transport interface {
	// Malloc allocates size bytes in linear memory.
	Malloc(ctx context.Context, size uint32) (uint32, error)
	// Free releases a block returned by Malloc.
	Free(ctx context.Context, ptr uint32) error
	// Memory exposes linear memory for reads and writes.
	Memory() jsvm.Memory
}

// Boundary is the flat set of engine primitives the runtime builds on.
//
// Every ValuePtr returned by a primitive is owned by the caller and must be
// released with FreeValue, except the address returned by GetUndefined,
// which is constant for the life of the engine. Guest exceptions are not Go
// errors: a primitive that raised one returns an exception marker that
// ResolveException turns into the thrown value. Go errors report transport
// failures only.
type Boundary interface {
	Transport

	NewRuntime(ctx context.Context) (RuntimePtr, error)
	FreeRuntime(ctx context.Context, rt RuntimePtr) error
	NewContext(ctx context.Context, rt RuntimePtr) (ContextPtr, error)
	FreeContext(ctx context.Context, c ContextPtr) error

	GetUndefined(ctx context.Context) (ValuePtr, error)
	GetGlobalObject(ctx context.Context, c ContextPtr) (ValuePtr, error)
	Typeof(ctx context.Context, c ContextPtr, v ValuePtr) (string, error)

	NewFloat64(ctx context.Context, c ContextPtr, n float64) (ValuePtr, error)
	GetFloat64(ctx context.Context, c ContextPtr, v ValuePtr) (float64, error)
	NewString(ctx context.Context, c ContextPtr, s string) (ValuePtr, error)
	GetString(ctx context.Context, c ContextPtr, v ValuePtr) (string, error)
	NewObject(ctx context.Context, c ContextPtr) (ValuePtr, error)
	NewObjectProto(ctx context.Context, c ContextPtr, proto ValuePtr) (ValuePtr, error)
	NewFunction(ctx context.Context, c ContextPtr, data ValuePtr, name string) (ValuePtr, error)
	NewError(ctx context.Context, c ContextPtr) (ValuePtr, error)

	GetProp(ctx context.Context, c ContextPtr, obj, key ValuePtr) (ValuePtr, error)
	SetProp(ctx context.Context, c ContextPtr, obj, key, val ValuePtr) error
	DefineProp(ctx context.Context, c ContextPtr, obj, key ValuePtr, args DefineArgs) error

	Call(ctx context.Context, c ContextPtr, fn, this ValuePtr, argc int32, argv ArgvPtr) (ValuePtr, error)
	Eval(ctx context.Context, c ContextPtr, source string) (ValuePtr, error)
	// ResolveException returns the pending exception if v is an exception
	// marker, or 0 otherwise.
	ResolveException(ctx context.Context, c ContextPtr, v ValuePtr) (ValuePtr, error)
	// Throw makes err the pending exception and returns an exception marker.
	Throw(ctx context.Context, c ContextPtr, err ValuePtr) (ValuePtr, error)

	FreeValue(ctx context.Context, c ContextPtr, v ValuePtr) error
	DupValue(ctx context.Context, c ContextPtr, v ValuePtr) (ValuePtr, error)
	// Dump serializes v to text, JSON where the engine can.
	Dump(ctx context.Context, c ContextPtr, v ValuePtr) (string, error)

	// SetHostCallback installs the trampoline. Engines support exactly one.
	SetHostCallback(cb HostCallback) error
	// ArgvGetAddress returns the address of argument i inside argv.
	ArgvGetAddress(ctx context.Context, argv ArgvPtr, i int32) (ValuePtr, error)
}
