package runtime

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/resource"
)

// HostFunction implements a JavaScript function in Go.
//
// this and args are borrowed: they are valid only until the function
// returns and must not be disposed or kept. The returned handle is consumed
// by the VM; return nil for undefined. A returned error is thrown into the
// calling script (see NewError and Throw).
type HostFunction func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error)

// dispatch runs the host function identified by data. It returns the
// address handed back to the engine: a new reference to the result, the
// exception marker when the function threw, or 0 for undefined. An error
// means the call could not be routed at all.
func (vm *VM) dispatch(ctx context.Context, c boundary.ContextPtr, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr, data boundary.ValuePtr) (boundary.ValuePtr, error) {
	if c != vm.ctxPtr {
		return 0, errors.ContextMismatch(vm.ctxPtr, c)
	}
	if err := vm.live(); err != nil {
		return 0, err
	}

	idf, err := vm.b.GetFloat64(ctx, c, data)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseDispatch, errors.KindInvalidData, err, "read host function id")
	}
	id := resource.Handle(idf)
	fn, ok := vm.callbacks.Get(id)
	if !ok {
		return 0, errors.NotFound(errors.PhaseDispatch, "host function", id)
	}

	thisH := vm.borrow(this)
	args := make([]*Handle, argc)
	defer func() {
		if thisH.Alive() {
			_ = thisH.Dispose()
		}
		for _, a := range args {
			if a.Alive() {
				_ = a.Dispose()
			}
		}
	}()
	for i := range args {
		p, err := vm.b.ArgvGetAddress(ctx, argv, int32(i))
		if err != nil {
			return 0, errors.Wrap(errors.PhaseMarshal, errors.KindOutOfBounds, err, fmt.Sprintf("read argument %d", i))
		}
		args[i] = vm.borrow(p)
	}

	res, err := invoke(ctx, fn, thisH, args)
	if err != nil {
		return vm.throw(ctx, err)
	}
	if res == nil {
		return 0, nil
	}
	return vm.returnValue(ctx, res)
}

func invoke(ctx context.Context, fn HostFunction, this *Handle, args []*Handle) (res *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &HostError{Name: "InternalError", Message: fmt.Sprintf("host function panicked: %v", r)}
		}
	}()
	return fn(ctx, this, args)
}

// returnValue hands a new reference to res to the engine and releases the
// host's handle.
func (vm *VM) returnValue(ctx context.Context, res *Handle) (boundary.ValuePtr, error) {
	p, err := vm.value(res)
	if err != nil {
		return vm.throw(ctx, err)
	}
	dup, err := vm.b.DupValue(ctx, vm.ctxPtr, p)
	if derr := res.Dispose(); derr != nil {
		vm.log.Warn("release host function result", zap.Error(derr))
	}
	if err != nil {
		return vm.throw(ctx, err)
	}
	return dup, nil
}

// throw makes err the pending exception and returns the engine's exception
// marker. A rethrown handle that is disposed or foreign is replaced by an
// error describing that failure.
func (vm *VM) throw(ctx context.Context, err error) (boundary.ValuePtr, error) {
	eh, owned, verr := vm.newErrorValue(ctx, err)
	if verr != nil {
		return 0, verr
	}
	p, verr := vm.value(eh)
	if verr != nil && !owned {
		if eh, owned, verr = vm.newErrorValue(ctx, verr); verr != nil {
			return 0, verr
		}
		p, verr = vm.value(eh)
	}
	if verr != nil {
		if owned {
			_ = eh.Dispose()
		}
		return 0, verr
	}
	marker, terr := vm.b.Throw(ctx, vm.ctxPtr, p)
	if owned {
		if derr := eh.Dispose(); derr != nil {
			vm.log.Warn("release thrown error", zap.Error(derr))
		}
	}
	return marker, terr
}
