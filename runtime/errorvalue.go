package runtime

import (
	"context"
	"fmt"

	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
)

// HostError is a JavaScript exception seen from Go. UnwrapResult fills Name
// and Message from error-shaped values; anything else thrown ends up in
// Value only. Returned from a HostFunction, it becomes a JavaScript error
// with the same name and message.
type HostError struct {
	Value   any
	Name    string
	Message string
}

func (e *HostError) Error() string {
	switch {
	case e.Name != "" && e.Message != "":
		return e.Name + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Name != "":
		return e.Name
	}
	return fmt.Sprintf("uncaught %v", e.Value)
}

// GuestError carries an engine value to throw from a HostFunction. The
// value is thrown as is and stays owned by whoever created it.
type GuestError struct {
	Value *Handle
}

func (e *GuestError) Error() string {
	if e.Value == nil {
		return "guest error: no value"
	}
	v, err := e.Value.Value()
	if err != nil {
		return "guest error: value disposed"
	}
	return fmt.Sprintf("guest error: %s", v)
}

// Throw wraps h so a HostFunction can return it as its error.
func (vm *VM) Throw(h *Handle) *GuestError {
	return &GuestError{Value: h}
}

// NewError creates an Error object. Empty name or message leave the
// defaults in place.
func (vm *VM) NewError(ctx context.Context, name, message string) (*Handle, error) {
	if err := vm.live(); err != nil {
		return nil, err
	}
	p, err := vm.b.NewError(ctx, vm.ctxPtr)
	if err != nil {
		return nil, err
	}
	h := vm.newHandle(p)
	for _, f := range [...]struct{ key, val string }{{"name", name}, {"message", message}} {
		if f.val == "" {
			continue
		}
		if err := vm.setString(ctx, h, f.key, f.val); err != nil {
			_ = h.Dispose()
			return nil, err
		}
	}
	return h, nil
}

func (vm *VM) setString(ctx context.Context, h *Handle, key, s string) error {
	sh, err := vm.NewString(ctx, s)
	if err != nil {
		return err
	}
	_, err = lifetime.Consume(sh, func(sh *Handle) (struct{}, error) {
		return struct{}{}, vm.SetProp(ctx, h, key, sh)
	})
	return err
}

type named interface {
	Name() string
}

// newErrorValue converts err into an engine error. A *GuestError passes its
// handle through and owned is false; otherwise a new Error object is
// returned and the caller must dispose it.
func (vm *VM) newErrorValue(ctx context.Context, err error) (h *Handle, owned bool, _ error) {
	var ge *GuestError
	if errors.As(err, &ge) && ge.Value != nil {
		return ge.Value, false, nil
	}

	var name, message string
	var he *HostError
	if errors.As(err, &he) {
		name, message = he.Name, he.Message
		if name == "" && message == "" {
			message = he.Error()
		}
	} else {
		message = err.Error()
		var n named
		if errors.As(err, &n) {
			name = n.Name()
		}
	}

	h, verr := vm.NewError(ctx, name, message)
	if verr != nil {
		return nil, false, verr
	}
	return h, true, nil
}
