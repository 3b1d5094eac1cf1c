package runtime

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
	"github.com/wippyai/jsvm/resource"
)

// VM is the handle facade over one engine context. Every operation checks
// that the handles it receives were created by this VM.
//
// A VM is not safe for concurrent use.
type VM struct {
	b         boundary.Boundary
	mgr       *Manager
	log       *zap.Logger
	rt        *lifetime.Lifetime[boundary.RuntimePtr, Owner]
	cx        *lifetime.Lifetime[boundary.ContextPtr, Owner]
	aux       *resource.Table[auxLifetime]
	callbacks *resource.Table[HostFunction]
	undefined *Handle
	global    *Handle
	ctxPtr    boundary.ContextPtr
	alive     bool
}

func newVM(m *Manager, rt boundary.RuntimePtr, c boundary.ContextPtr, undef boundary.ValuePtr) *VM {
	vm := &VM{
		b:         m.b,
		mgr:       m,
		log:       m.log.With(zap.Uint32("context", uint32(c))),
		aux:       resource.NewTable[auxLifetime](),
		callbacks: resource.NewTable[HostFunction](),
		undefined: lifetime.NewStatic[boundary.ValuePtr, Owner](undef),
		ctxPtr:    c,
		alive:     true,
	}
	vm.rt = lifetime.New[boundary.RuntimePtr, Owner](rt, func(p boundary.RuntimePtr) error {
		return vm.b.FreeRuntime(context.Background(), p)
	}, vm)
	vm.cx = lifetime.New[boundary.ContextPtr, Owner](c, func(p boundary.ContextPtr) error {
		vm.mgr.deregister(p)
		return vm.b.FreeContext(context.Background(), p)
	}, vm)
	vm.callbacks.Subscribe(callbackLog{vm.log})
	return vm
}

// Alive reports whether the VM has not been disposed.
func (vm *VM) Alive() bool {
	return vm != nil && vm.alive
}

// Context returns the engine context address.
func (vm *VM) Context() boundary.ContextPtr {
	return vm.ctxPtr
}

// Dispose releases everything the VM tracks, then the context, then the
// runtime. The context is removed from the manager before it is freed.
// Dispose is one-shot; a second call fails with errors.ErrDisposed.
func (vm *VM) Dispose() error {
	if !vm.Alive() {
		return errors.Disposed("vm")
	}
	vm.alive = false

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	vm.aux.Each(func(_ resource.Handle, l auxLifetime) bool {
		if l.Alive() {
			keep(l.Dispose())
		}
		return true
	})
	keep(vm.aux.Close())
	keep(vm.callbacks.Close())
	keep(vm.cx.Dispose())
	keep(vm.rt.Dispose())

	vm.log.Debug("vm disposed")
	return firstErr
}

func (vm *VM) live() error {
	if !vm.Alive() {
		return errors.Disposed("vm")
	}
	return nil
}

// freeValue releases p unless the context is already gone; values of a
// freed context must not reach the engine again.
func (vm *VM) freeValue(p boundary.ValuePtr) error {
	if !vm.cx.Alive() {
		return errors.Disposed("vm")
	}
	return vm.b.FreeValue(context.Background(), vm.ctxPtr, p)
}

// track registers l for release on teardown. untrack forgets it again once
// the caller has released it itself.
func (vm *VM) track(l auxLifetime) resource.Handle {
	h, err := vm.aux.Insert(l)
	if err != nil {
		return 0
	}
	return h
}

func (vm *VM) untrack(h resource.Handle) {
	if h != 0 {
		vm.aux.Remove(h)
	}
}

// Undefined returns the static handle for the engine's undefined value.
func (vm *VM) Undefined() *Handle {
	return vm.undefined
}

// Global returns the global object. The handle is owned by the VM and
// released on Dispose; callers must not dispose it.
func (vm *VM) Global(ctx context.Context) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	if vm.global.Alive() {
		return vm.global, nil
	}
	p, err := vm.b.GetGlobalObject(ctx, vm.ctxPtr)
	if err != nil {
		return nil, err
	}
	vm.global = vm.newHandle(p)
	vm.track(vm.global)
	return vm.global, nil
}

// Typeof returns the JavaScript typeof tag of h.
func (vm *VM) Typeof(ctx context.Context, h *Handle) (string, error) {
	p, err := vm.operand(h)
	if err != nil {
		return "", err
	}
	return vm.b.Typeof(ctx, vm.ctxPtr, p)
}

// NewNumber creates a number value.
func (vm *VM) NewNumber(ctx context.Context, n float64) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	p, err := vm.b.NewFloat64(ctx, vm.ctxPtr, n)
	if err != nil {
		return nil, err
	}
	return vm.newHandle(p), nil
}

// GetNumber converts h to a number. Any failure, including a foreign or
// disposed handle, yields NaN.
func (vm *VM) GetNumber(ctx context.Context, h *Handle) float64 {
	p, err := vm.operand(h)
	if err != nil {
		vm.log.Debug("number conversion failed", zap.Error(err))
		return math.NaN()
	}
	n, err := vm.b.GetFloat64(ctx, vm.ctxPtr, p)
	if err != nil {
		vm.log.Debug("number conversion failed", zap.Error(err))
		return math.NaN()
	}
	return n
}

// NewString creates a string value from s.
func (vm *VM) NewString(ctx context.Context, s string) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	p, err := vm.b.NewString(ctx, vm.ctxPtr, s)
	if err != nil {
		return nil, err
	}
	return vm.newHandle(p), nil
}

// GetString converts h to a string.
func (vm *VM) GetString(ctx context.Context, h *Handle) (string, error) {
	p, err := vm.operand(h)
	if err != nil {
		return "", err
	}
	return vm.b.GetString(ctx, vm.ctxPtr, p)
}

// NewObject creates an empty object. proto is optional; when set the new
// object inherits from it.
func (vm *VM) NewObject(ctx context.Context, proto *Handle) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	var (
		p   boundary.ValuePtr
		err error
	)
	if proto == nil {
		p, err = vm.b.NewObject(ctx, vm.ctxPtr)
	} else {
		var pp boundary.ValuePtr
		if pp, err = vm.value(proto); err != nil {
			return nil, err
		}
		p, err = vm.b.NewObjectProto(ctx, vm.ctxPtr, pp)
	}
	if err != nil {
		return nil, err
	}
	return vm.newHandle(p), nil
}

// NewFunction creates a function value that calls fn. name becomes the
// function's name property.
func (vm *VM) NewFunction(ctx context.Context, name string, fn HostFunction) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseVM, "host function is nil")
	}

	id, err := vm.callbacks.Insert(fn)
	if err != nil {
		return nil, err
	}
	scratch, err := vm.NewNumber(ctx, float64(id))
	if err != nil {
		vm.callbacks.Remove(id)
		return nil, err
	}

	// The engine keeps the ID itself; the scratch number is released here.
	fnh, err := lifetime.Consume(scratch, func(idh *Handle) (*Handle, error) {
		idp, err := idh.Value()
		if err != nil {
			return nil, err
		}
		p, err := vm.b.NewFunction(ctx, vm.ctxPtr, idp, name)
		if err != nil {
			vm.callbacks.Remove(id)
			return nil, err
		}
		return vm.newHandle(p), nil
	})
	if err != nil {
		if fnh != nil {
			_ = fnh.Dispose()
			vm.callbacks.Remove(id)
		}
		return nil, err
	}
	return fnh, nil
}

// GetProp reads h[key]. key is a string or a *Handle. An exception thrown
// by a getter is returned as a *HostError.
func (vm *VM) GetProp(ctx context.Context, h *Handle, key any) (*Handle, error) {
	obj, err := vm.operand(h)
	if err != nil {
		return nil, err
	}
	var res *Handle
	err = vm.withKey(ctx, key, func(k boundary.ValuePtr) error {
		p, err := vm.b.GetProp(ctx, vm.ctxPtr, obj, k)
		if err != nil {
			return err
		}
		r, err := vm.resolve(ctx, p)
		if err != nil {
			return err
		}
		res, err = vm.UnwrapResult(ctx, r)
		return err
	})
	return res, err
}

// SetProp assigns h[key] = v. key is a string or a *Handle.
func (vm *VM) SetProp(ctx context.Context, h *Handle, key any, v *Handle) error {
	obj, err := vm.operand(h)
	if err != nil {
		return err
	}
	val, err := vm.value(v)
	if err != nil {
		return err
	}
	return vm.withKey(ctx, key, func(k boundary.ValuePtr) error {
		return vm.b.SetProp(ctx, vm.ctxPtr, obj, k, val)
	})
}

// SetGlobal defines fn as a function property of the global object.
func (vm *VM) SetGlobal(ctx context.Context, name string, fn HostFunction) error {
	global, err := vm.Global(ctx)
	if err != nil {
		return err
	}
	f, err := vm.NewFunction(ctx, name, fn)
	if err != nil {
		return err
	}
	_, err = lifetime.Consume(f, func(f *Handle) (struct{}, error) {
		return struct{}{}, vm.SetProp(ctx, global, name, f)
	})
	return err
}

// operand checks vm and resolves h.
func (vm *VM) operand(h *Handle) (boundary.ValuePtr, error) {
	if err := vm.live(); err != nil {
		return 0, err
	}
	return vm.value(h)
}

// withKey passes the address of key to fn. A string key lives in a
// transient handle released once fn returns.
func (vm *VM) withKey(ctx context.Context, key any, fn func(boundary.ValuePtr) error) error {
	switch k := key.(type) {
	case *Handle:
		p, err := vm.value(k)
		if err != nil {
			return err
		}
		return fn(p)
	case string:
		kh, err := vm.NewString(ctx, k)
		if err != nil {
			return err
		}
		_, err = lifetime.Consume(kh, func(kh *Handle) (struct{}, error) {
			p, err := kh.Value()
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, fn(p)
		})
		return err
	}
	return errors.New(errors.PhaseVM, errors.KindTypeMismatch).
		GoType(fmt.Sprintf("%T", key)).
		Detail("property key must be a string or *Handle").
		Build()
}

type callbackLog struct {
	log *zap.Logger
}

func (c callbackLog) OnResourceEvent(e resource.Event) {
	c.log.Debug("host function "+e.Type.String(), zap.Uint32("id", uint32(e.Handle)))
}
