package runtime

import (
	"fmt"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
)

// Owner identifies the VM a handle belongs to. *VM is the only
// implementation; handles compare owners for equality and never reach the
// VM's resources through it.
type Owner interface {
	Context() boundary.ContextPtr
}

// Handle is a reference to one engine value. Handles created by a VM are
// owned by it and must be disposed; Undefined is static and needs no
// disposal. Handles passed to a HostFunction are borrowed for the duration
// of the call.
type Handle = lifetime.Lifetime[boundary.ValuePtr, Owner]

// auxLifetime is anything the VM releases on teardown.
type auxLifetime interface {
	Alive() bool
	Dispose() error
}

func (vm *VM) newHandle(p boundary.ValuePtr) *Handle {
	return lifetime.New[boundary.ValuePtr, Owner](p, vm.freeValue, vm)
}

func (vm *VM) borrow(p boundary.ValuePtr) *Handle {
	return lifetime.NewBorrowed[boundary.ValuePtr, Owner](p, vm)
}

// value resolves h to its address after checking that it belongs to vm and
// is still alive.
func (vm *VM) value(h *Handle) (boundary.ValuePtr, error) {
	if h == nil {
		return 0, errors.InvalidInput(errors.PhaseVM, "nil handle")
	}
	if owner := h.Owner(); owner != nil && owner != Owner(vm) {
		return 0, errors.Ownership(fmt.Sprintf("handle belongs to VM %s, used with VM %s", owner.Context(), vm.ctxPtr))
	}
	return h.Value()
}

// values resolves several handles, stopping at the first failure.
func (vm *VM) values(hs []*Handle) ([]boundary.ValuePtr, error) {
	ptrs := make([]boundary.ValuePtr, len(hs))
	for i, h := range hs {
		p, err := vm.value(h)
		if err != nil {
			return nil, err
		}
		ptrs[i] = p
	}
	return ptrs, nil
}
