package runtime

import (
	"context"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
)

// PropertyDescriptor describes a property for DefineProp. A descriptor is
// either a data property (Value) or an accessor (Get and/or Set); setting
// both kinds is rejected. Absent parts default to undefined.
type PropertyDescriptor struct {
	Value        *Handle
	Get          HostFunction
	Set          HostFunction
	Configurable bool
	Enumerable   bool
}

func (d PropertyDescriptor) accessor() bool {
	return d.Get != nil || d.Set != nil
}

// DefineProp defines key on h as described by desc. key is a string or a
// *Handle. Accessor functions are created for the call and released after
// the engine has taken its own reference.
func (vm *VM) DefineProp(ctx context.Context, h *Handle, key any, desc PropertyDescriptor) error {
	obj, err := vm.operand(h)
	if err != nil {
		return err
	}
	if desc.Value != nil && desc.accessor() {
		return errors.InvalidInput(errors.PhaseVM, "property descriptor has both a value and an accessor")
	}

	undef, _ := vm.undefined.Value()
	args := boundary.DefineArgs{
		Value:        undef,
		Get:          undef,
		Set:          undef,
		Configurable: desc.Configurable,
		Enumerable:   desc.Enumerable,
	}
	if desc.Value != nil {
		if args.Value, err = vm.value(desc.Value); err != nil {
			return err
		}
		args.HasValue = true
	}

	name, _ := key.(string)
	var accessors []*Handle
	defer func() {
		for _, f := range accessors {
			_ = f.Dispose()
		}
	}()
	if desc.Get != nil {
		f, err := vm.NewFunction(ctx, "get "+name, desc.Get)
		if err != nil {
			return err
		}
		accessors = append(accessors, f)
		args.Get, _ = f.Value()
	}
	if desc.Set != nil {
		f, err := vm.NewFunction(ctx, "set "+name, desc.Set)
		if err != nil {
			return err
		}
		accessors = append(accessors, f)
		args.Set, _ = f.Value()
	}

	return vm.withKey(ctx, key, func(k boundary.ValuePtr) error {
		return vm.b.DefineProp(ctx, vm.ctxPtr, obj, k, args)
	})
}
