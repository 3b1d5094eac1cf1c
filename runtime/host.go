package runtime

import (
	"context"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"unicode"

	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
)

// Host is the interface for struct-based host modules. All exported
// methods (except Namespace) become functions of a global object named by
// Namespace.
type Host interface {
	Namespace() string
}

// ExplicitRegistrar lets a host provide exact JavaScript names when the
// automatic PascalCase-to-camelCase conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	handleType  = reflect.TypeOf((*Handle)(nil))
)

type (
	argDecoder    func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error)
	resultEncoder func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error)
)

// WrapFunc adapts a typed Go function to a HostFunction.
//
// Parameters may be an optional leading context.Context followed by any of
// *Handle, string, bool, integer and float kinds, or an empty interface
// (filled from Dump). Missing arguments are undefined. Results may be
// nothing, a value, an error, or a value and an error; values are *Handle,
// string, bool, integer or float kinds.
func WrapFunc(fn any) (HostFunction, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(typeName(fn)).
			Detail("handler must be a function").
			Build()
	}
	if rv.IsNil() {
		return nil, errors.InvalidInput(errors.PhaseHost, "handler is a nil function")
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("variadic handlers are not supported").
			Build()
	}

	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	first := 0
	if withCtx {
		first = 1
	}
	decoders := make([]argDecoder, 0, ft.NumIn()-first)
	for i := first; i < ft.NumIn(); i++ {
		dec, err := decoderFor(ft.In(i))
		if err != nil {
			return nil, err
		}
		decoders = append(decoders, dec)
	}

	enc, hasErr, err := encoderFor(ft)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error) {
		var vm *VM
		if this != nil {
			vm, _ = this.Owner().(*VM)
		}
		if vm == nil {
			return nil, errors.InvalidInput(errors.PhaseHost, "host function called without a VM")
		}

		in := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}
		for i, dec := range decoders {
			h := vm.Undefined()
			if i < len(args) {
				h = args[i]
			}
			v, err := dec(ctx, vm, h)
			if err != nil {
				return nil, err
			}
			in = append(in, v)
		}

		out := rv.Call(in)
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				return nil, e.Interface().(error)
			}
		}
		if enc == nil {
			return nil, nil
		}
		return enc(ctx, vm, out[0])
	}, nil
}

func decoderFor(t reflect.Type) (argDecoder, error) {
	if t == handleType {
		return func(_ context.Context, _ *VM, h *Handle) (reflect.Value, error) {
			return reflect.ValueOf(h), nil
		}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error) {
			s, err := vm.GetString(ctx, h)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(s).Convert(t), nil
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error) {
			return intArg(t, vm.GetNumber(ctx, h))
		}, nil
	case reflect.Float32, reflect.Float64:
		return func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error) {
			return reflect.ValueOf(vm.GetNumber(ctx, h)).Convert(t), nil
		}, nil
	case reflect.Bool:
		return func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error) {
			v, err := vm.Dump(ctx, h)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(truthy(v)).Convert(t), nil
		}, nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			break
		}
		return func(ctx context.Context, vm *VM, h *Handle) (reflect.Value, error) {
			v, err := vm.Dump(ctx, h)
			if err != nil {
				return reflect.Value{}, err
			}
			if v == nil {
				return reflect.Zero(t), nil
			}
			return reflect.ValueOf(v), nil
		}, nil
	}

	return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
		GoType(t.String()).
		Detail("unsupported parameter type").
		Build()
}

// intArg converts n to the integer type t. NaN is thrown as a TypeError;
// fractions and values outside t's range as a RangeError.
func intArg(t reflect.Type, n float64) (reflect.Value, error) {
	if math.IsNaN(n) {
		return reflect.Value{}, &HostError{Name: "TypeError", Message: fmt.Sprintf("expected a number for %s", t)}
	}

	v := reflect.New(t).Elem()
	var e *errors.Error
	switch {
	case n != math.Trunc(n):
		e = errors.New(errors.PhaseHost, errors.KindOverflow).
			GoType(t.String()).
			Value(n).
			Detail("value %v is not an integer", n).
			Build()
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		if n < 0 || n >= 1<<64 || v.OverflowUint(uint64(n)) {
			e = errors.Overflow(errors.PhaseHost, nil, n, t.String())
		} else {
			v.SetUint(uint64(n))
		}
	default:
		if n < -(1<<63) || n >= 1<<63 || v.OverflowInt(int64(n)) {
			e = errors.Overflow(errors.PhaseHost, nil, n, t.String())
		} else {
			v.SetInt(int64(n))
		}
	}
	if e != nil {
		return reflect.Value{}, &HostError{Name: "RangeError", Message: e.Detail}
	}
	return v, nil
}

func encoderFor(ft reflect.Type) (enc resultEncoder, hasErr bool, err error) {
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		hasErr = true
		n--
	}
	switch n {
	case 0:
		return nil, hasErr, nil
	case 1:
	default:
		return nil, false, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(ft.String()).
			Detail("handler must return at most one value and an error").
			Build()
	}

	t := ft.Out(0)
	if t == handleType {
		return func(_ context.Context, _ *VM, v reflect.Value) (*Handle, error) {
			h, _ := v.Interface().(*Handle)
			return h, nil
		}, hasErr, nil
	}

	switch t.Kind() {
	case reflect.String:
		enc = func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error) {
			return vm.NewString(ctx, v.String())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		enc = func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error) {
			return vm.NewNumber(ctx, float64(v.Int()))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		enc = func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error) {
			return vm.NewNumber(ctx, float64(v.Uint()))
		}
	case reflect.Float32, reflect.Float64:
		enc = func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error) {
			return vm.NewNumber(ctx, v.Float())
		}
	case reflect.Bool:
		enc = func(ctx context.Context, vm *VM, v reflect.Value) (*Handle, error) {
			return vm.newBool(ctx, v.Bool())
		}
	default:
		return nil, false, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(t.String()).
			Detail("unsupported result type").
			Build()
	}
	return enc, hasErr, nil
}

// newBool has no dedicated engine primitive, so the literal is evaluated.
func (vm *VM) newBool(ctx context.Context, b bool) (*Handle, error) {
	r, err := vm.EvalCode(ctx, strconv.FormatBool(b))
	if err != nil {
		return nil, err
	}
	return vm.UnwrapResult(ctx, r)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

// RegisterFunc wraps fn with WrapFunc and defines it on the global object.
func (vm *VM) RegisterFunc(ctx context.Context, name string, fn any) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name cannot be empty")
	}
	hf, err := WrapFunc(fn)
	if err != nil {
		return err
	}
	return vm.SetGlobal(ctx, name, hf)
}

// RegisterHost defines a global object named h.Namespace() holding h's
// exported methods. Method names are converted from PascalCase to
// camelCase (GetValue -> getValue).
func (vm *VM) RegisterHost(ctx context.Context, h Host) error {
	ns := h.Namespace()
	if ns == "" {
		return errors.InvalidInput(errors.PhaseHost, "namespace cannot be empty")
	}

	funcs := hostFuncs(h)
	hfs := make(map[string]HostFunction, len(funcs))
	for name, fn := range funcs {
		hf, err := WrapFunc(fn)
		if err != nil {
			return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
				Path(ns, name).
				Cause(err).
				Detail("wrap host method").
				Build()
		}
		hfs[name] = hf
	}

	global, err := vm.Global(ctx)
	if err != nil {
		return err
	}
	obj, err := vm.NewObject(ctx, nil)
	if err != nil {
		return err
	}
	_, err = lifetime.Consume(obj, func(obj *Handle) (struct{}, error) {
		for _, name := range slices.Sorted(maps.Keys(hfs)) {
			f, err := vm.NewFunction(ctx, name, hfs[name])
			if err != nil {
				return struct{}{}, err
			}
			_, err = lifetime.Consume(f, func(f *Handle) (struct{}, error) {
				return struct{}{}, vm.SetProp(ctx, obj, name, f)
			})
			if err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, vm.SetProp(ctx, global, ns, obj)
	})
	return err
}

func hostFuncs(h Host) map[string]any {
	if er, ok := h.(ExplicitRegistrar); ok {
		return er.Register()
	}

	rv := reflect.ValueOf(h)
	rt := rv.Type()
	funcs := make(map[string]any, rt.NumMethod())
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Name == "Namespace" {
			continue
		}
		funcs[toCamelCase(method.Name)] = rv.Method(i).Interface()
	}
	return funcs
}

// toCamelCase lowercases the leading word of a PascalCase name.
// Handles acronyms: HTTPGet -> httpGet, ID -> id.
func toCamelCase(s string) string {
	runes := []rune(s)
	end := 0
	for end < len(runes) && unicode.IsUpper(runes[end]) {
		end++
	}
	// Last uppercase before lowercase starts the next word
	if end > 1 && end < len(runes) && unicode.IsLower(runes[end]) {
		end--
	}
	if end == 0 {
		end = 1
	}
	for i := 0; i < end && i < len(runes); i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
