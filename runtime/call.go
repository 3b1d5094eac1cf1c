package runtime

import (
	"context"

	"github.com/wippyai/jsvm"
	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
)

// Result is the outcome of running guest code: exactly one of Value and
// Error is set. Both are owned by the VM that produced them.
type Result struct {
	Value *Handle
	Error *Handle
}

// IsError reports whether the guest code threw.
func (r Result) IsError() bool {
	return r.Error != nil
}

// Dispose releases whichever handle the result holds.
func (r Result) Dispose() error {
	if r.Error != nil {
		return r.Error.Dispose()
	}
	if r.Value != nil {
		return r.Value.Dispose()
	}
	return nil
}

// argvBuffer is a call-scoped array of value addresses in linear memory.
type argvBuffer = lifetime.Lifetime[uint32, Owner]

// CallFunction calls fn with this bound to this (undefined when nil).
// An exception thrown by fn is returned in Result.Error, not as an error;
// the error return is reserved for misuse and engine failures.
func (vm *VM) CallFunction(ctx context.Context, fn, this *Handle, args ...*Handle) (Result, error) {
	fp, err := vm.operand(fn)
	if err != nil {
		return Result{}, err
	}
	tp, _ := vm.undefined.Value()
	if this != nil {
		if tp, err = vm.value(this); err != nil {
			return Result{}, err
		}
	}
	ptrs, err := vm.values(args)
	if err != nil {
		return Result{}, err
	}

	argv, err := vm.newArgv(ctx, ptrs)
	if err != nil {
		return Result{}, err
	}
	p, err := lifetime.Consume(argv, func(argv *argvBuffer) (boundary.ValuePtr, error) {
		defer vm.untrack(vm.track(argv))
		addr, err := argv.Value()
		if err != nil {
			return 0, err
		}
		return vm.b.Call(ctx, vm.ctxPtr, fp, tp, int32(len(ptrs)), boundary.ArgvPtr(addr))
	})
	if err != nil {
		if p != 0 {
			_ = vm.freeValue(p)
		}
		return Result{}, err
	}
	return vm.resolve(ctx, p)
}

// EvalCode evaluates source in the VM's global scope. Exceptions are
// reported the same way as in CallFunction.
func (vm *VM) EvalCode(ctx context.Context, source string) (Result, error) {
	if err := vm.live(); err != nil {
		return Result{}, err
	}
	p, err := vm.b.Eval(ctx, vm.ctxPtr, source)
	if err != nil {
		return Result{}, err
	}
	return vm.resolve(ctx, p)
}

// newArgv writes ptrs into a freshly allocated array of 32-bit addresses.
// No arguments means a null array and no allocation.
func (vm *VM) newArgv(ctx context.Context, ptrs []boundary.ValuePtr) (*argvBuffer, error) {
	if len(ptrs) == 0 {
		return lifetime.New[uint32, Owner](0, nil, vm), nil
	}

	size := uint32(len(ptrs)) * jsvm.PointerSize
	addr, err := vm.b.Malloc(ctx, size)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMarshal, errors.KindAllocation, err, "allocate argv")
	}
	if addr == 0 {
		return nil, errors.AllocationFailed(errors.PhaseMarshal, size)
	}

	mem := vm.b.Memory()
	for i, p := range ptrs {
		if err := mem.WriteU32(addr+uint32(i)*jsvm.PointerSize, uint32(p)); err != nil {
			_ = vm.b.Free(ctx, addr)
			return nil, err
		}
	}
	return lifetime.New[uint32, Owner](addr, func(a uint32) error {
		if !vm.cx.Alive() {
			return errors.Disposed("vm")
		}
		return vm.b.Free(context.Background(), a)
	}, vm), nil
}

// resolve turns the address returned by an engine call into a Result,
// taking ownership of it.
func (vm *VM) resolve(ctx context.Context, p boundary.ValuePtr) (Result, error) {
	exc, err := vm.b.ResolveException(ctx, vm.ctxPtr, p)
	if err != nil {
		_ = vm.freeValue(p)
		return Result{}, err
	}
	if exc.IsNull() {
		return Result{Value: vm.newHandle(p)}, nil
	}
	if err := vm.freeValue(p); err != nil {
		_ = vm.freeValue(exc)
		return Result{}, err
	}
	return Result{Error: vm.newHandle(exc)}, nil
}
