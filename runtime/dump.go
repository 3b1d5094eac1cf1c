package runtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Dump converts h into a Go value. Strings and numbers convert directly and
// undefined becomes nil. Anything else is serialized by the engine and
// decoded as JSON; when that fails the engine's text is returned as is.
func (vm *VM) Dump(ctx context.Context, h *Handle) (any, error) {
	p, err := vm.operand(h)
	if err != nil {
		return nil, err
	}
	ty, err := vm.b.Typeof(ctx, vm.ctxPtr, p)
	if err != nil {
		return nil, err
	}
	switch ty {
	case "undefined":
		return nil, nil
	case "string":
		return vm.b.GetString(ctx, vm.ctxPtr, p)
	case "number":
		return vm.b.GetFloat64(ctx, vm.ctxPtr, p)
	}

	text, err := vm.b.Dump(ctx, vm.ctxPtr, p)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return text, nil
	}
	return out, nil
}

// UnwrapResult returns r.Value, or a *HostError rebuilt from the dumped
// exception. The exception handle is always released.
func (vm *VM) UnwrapResult(ctx context.Context, r Result) (*Handle, error) {
	if !r.IsError() {
		return r.Value, nil
	}
	if _, err := vm.operand(r.Error); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Error.Dispose(); err != nil {
			vm.log.Warn("release exception", zap.Error(err))
		}
	}()

	dumped, err := vm.Dump(ctx, r.Error)
	if err != nil {
		return nil, err
	}
	return nil, hostError(dumped)
}

// hostError rebuilds an exception value. Objects with a message field are
// treated as errors.
func hostError(v any) *HostError {
	he := &HostError{Value: v}
	obj, ok := v.(map[string]any)
	if !ok {
		return he
	}
	msg, isErr := obj["message"]
	if !isErr {
		return he
	}
	he.Message, _ = msg.(string)
	he.Name, _ = obj["name"].(string)
	return he
}
