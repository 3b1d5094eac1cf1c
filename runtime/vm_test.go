package runtime

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/jsvm/errors"
	"github.com/wippyai/jsvm/lifetime"
)

func TestVM_StringRoundtrip(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	for _, s := range []string{"", "hello", "ünïcödé", "with\nnewline", "\"quoted\""} {
		h, err := vm.NewString(ctx, s)
		require.NoError(t, err)
		got, err := vm.GetString(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, s, got)
		require.NoError(t, h.Dispose())
	}
	assert.Equal(t, 0, eng.LiveValues())
}

func TestVM_NumberRoundtrip(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	for _, n := range []float64{0, 1, -1, 0.5, 1e21, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(1)} {
		h, err := vm.NewNumber(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, n, vm.GetNumber(ctx, h))
		require.NoError(t, h.Dispose())
	}
	assert.Equal(t, 0, eng.LiveValues())
}

func TestVM_GetNumberNaN(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	s, err := vm.NewString(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vm.GetNumber(ctx, s)))

	require.NoError(t, s.Dispose())
	assert.True(t, math.IsNaN(vm.GetNumber(ctx, s)), "disposed handle")
	assert.True(t, math.IsNaN(vm.GetNumber(ctx, nil)), "nil handle")
}

func TestVM_Typeof(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	n, err := vm.NewNumber(ctx, 1)
	require.NoError(t, err)
	defer n.Dispose()
	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	defer obj.Dispose()

	tests := []struct {
		h    *Handle
		want string
	}{
		{vm.Undefined(), "undefined"},
		{n, "number"},
		{obj, "object"},
	}
	for _, tt := range tests {
		got, err := vm.Typeof(ctx, tt.h)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestVM_Disposed(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	h, err := vm.NewString(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, h.Dispose())

	_, err = vm.GetString(ctx, h)
	assert.ErrorIs(t, err, errors.ErrDisposed)
	assert.ErrorIs(t, h.Dispose(), errors.ErrDisposed)
	_, err = h.Value()
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestVM_Ownership(t *testing.T) {
	eng, mgr := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	b, err := mgr.NewVM(ctx)
	require.NoError(t, err)

	ha, err := a.NewString(ctx, "from a")
	require.NoError(t, err)
	hb, err := b.NewObject(ctx, nil)
	require.NoError(t, err)

	_, err = b.GetString(ctx, ha)
	assert.ErrorIs(t, err, errors.ErrOwnership)
	_, err = b.Typeof(ctx, ha)
	assert.ErrorIs(t, err, errors.ErrOwnership)
	_, err = b.Dump(ctx, ha)
	assert.ErrorIs(t, err, errors.ErrOwnership)
	assert.ErrorIs(t, b.SetProp(ctx, hb, "k", ha), errors.ErrOwnership)
	assert.ErrorIs(t, b.SetProp(ctx, hb, ha, hb), errors.ErrOwnership, "foreign key handle")
	_, err = b.NewObject(ctx, ha)
	assert.ErrorIs(t, err, errors.ErrOwnership)
	_, err = b.CallFunction(ctx, ha, nil)
	assert.ErrorIs(t, err, errors.ErrOwnership)
	_, err = b.UnwrapResult(ctx, Result{Error: ha})
	assert.ErrorIs(t, err, errors.ErrOwnership)
	assert.True(t, ha.Alive(), "rejected handles are left alone")

	got, err := a.GetString(ctx, ha)
	require.NoError(t, err)
	assert.Equal(t, "from a", got)
	assert.Same(t, a, ha.Owner())
	assert.Same(t, b, hb.Owner())

	// The static undefined handle is accepted everywhere.
	_, err = a.Typeof(ctx, b.Undefined())
	assert.NoError(t, err)

	require.NoError(t, a.Dispose())
	ty, err := b.Typeof(ctx, hb)
	require.NoError(t, err)
	assert.Equal(t, "object", ty, "disposing one VM leaves the other intact")

	require.NoError(t, hb.Dispose())
	assert.Empty(t, eng.Violations())
}

func TestVM_DisposedVM(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	require.NoError(t, vm.Dispose())

	_, err := vm.NewNumber(ctx, 1)
	assert.ErrorIs(t, err, errors.ErrDisposed)
	_, err = vm.NewString(ctx, "x")
	assert.ErrorIs(t, err, errors.ErrDisposed)
	_, err = vm.Global(ctx)
	assert.ErrorIs(t, err, errors.ErrDisposed)
	_, err = vm.EvalCode(ctx, "1")
	assert.ErrorIs(t, err, errors.ErrDisposed)
	_, err = vm.Typeof(ctx, vm.Undefined())
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestVM_HandleDisposeAfterVM(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	h, err := vm.NewString(ctx, "outlives its vm")
	require.NoError(t, err)
	require.NoError(t, vm.Dispose())

	// Any engine call would fail with this error instead.
	eng.FailOn("FreeValue", assert.AnError)
	err = h.Dispose()
	assert.ErrorIs(t, err, errors.ErrDisposed)
	assert.NotErrorIs(t, err, assert.AnError)
	assert.False(t, h.Alive())
	assert.Empty(t, eng.Violations())
}

func TestVM_Undefined(t *testing.T) {
	_, vm := newTestVM(t)

	u := vm.Undefined()
	assert.Same(t, u, vm.Undefined())
	assert.Equal(t, lifetime.Static, u.Kind())
	assert.Nil(t, u.Owner())
	require.NoError(t, u.Dispose())
	assert.True(t, u.Alive(), "static handles ignore dispose")
}

func TestVM_Global(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	g1, err := vm.Global(ctx)
	require.NoError(t, err)
	g2, err := vm.Global(ctx)
	require.NoError(t, err)
	assert.Same(t, g1, g2)
	assert.Equal(t, 1, eng.LiveValues())

	ty, err := vm.Typeof(ctx, g1)
	require.NoError(t, err)
	assert.Equal(t, "object", ty)

	require.NoError(t, vm.Dispose())
	assert.False(t, g1.Alive())
	assert.Equal(t, 0, eng.LiveValues())
}

func TestVM_ObjectProto(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	proto, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	defer proto.Dispose()
	v, err := vm.NewString(ctx, "inherited")
	require.NoError(t, err)
	defer v.Dispose()
	require.NoError(t, vm.SetProp(ctx, proto, "k", v))

	child, err := vm.NewObject(ctx, proto)
	require.NoError(t, err)
	defer child.Dispose()

	got, err := vm.GetProp(ctx, child, "k")
	require.NoError(t, err)
	defer got.Dispose()
	s, err := vm.GetString(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "inherited", s)
}

func TestVM_PropKeys(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	n, err := vm.NewNumber(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, vm.SetProp(ctx, obj, "byString", n))

	key, err := vm.NewString(ctx, "byHandle")
	require.NoError(t, err)
	require.NoError(t, vm.SetProp(ctx, obj, key, n))
	assert.True(t, key.Alive(), "handle keys stay with the caller")

	got, err := vm.GetProp(ctx, obj, key)
	require.NoError(t, err)
	assert.Equal(t, float64(7), vm.GetNumber(ctx, got))

	objp, _ := obj.Value()
	assert.Equal(t, []string{"byString", "byHandle"}, eng.Keys(objp))

	err = vm.SetProp(ctx, obj, 42, n)
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindTypeMismatch, e.Kind)
	assert.Equal(t, "int", e.GoType)

	before := eng.LiveValues()
	missing, err := vm.GetProp(ctx, obj, "missing")
	require.NoError(t, err)
	ty, err := vm.Typeof(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, "undefined", ty)
	require.NoError(t, missing.Dispose())
	assert.Equal(t, before, eng.LiveValues(), "transient key strings are released")

	for _, h := range []*Handle{got, key, n, obj} {
		require.NoError(t, h.Dispose())
	}
	assert.Equal(t, 0, eng.LiveValues())
}

func TestVM_DefinePropData(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	defer obj.Dispose()
	v, err := vm.NewNumber(ctx, 3)
	require.NoError(t, err)
	defer v.Dispose()

	require.NoError(t, vm.DefineProp(ctx, obj, "shown", PropertyDescriptor{Value: v, Enumerable: true}))
	require.NoError(t, vm.DefineProp(ctx, obj, "hidden", PropertyDescriptor{Value: v}))
	require.NoError(t, vm.DefineProp(ctx, obj, "empty", PropertyDescriptor{Enumerable: true}))

	objp, _ := obj.Value()
	assert.Equal(t, []string{"shown", "empty"}, eng.Keys(objp))

	got, err := vm.GetProp(ctx, obj, "hidden")
	require.NoError(t, err)
	defer got.Dispose()
	assert.Equal(t, float64(3), vm.GetNumber(ctx, got))

	empty, err := vm.GetProp(ctx, obj, "empty")
	require.NoError(t, err)
	defer empty.Dispose()
	d, err := vm.Dump(ctx, empty)
	require.NoError(t, err)
	assert.Nil(t, d, "absent value defaults to undefined")
}

func TestVM_DefinePropAccessor(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)

	reads := 0
	var written float64
	desc := PropertyDescriptor{
		Get: func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error) {
			reads++
			return vm.NewNumber(ctx, float64(reads*10))
		},
		Set: func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error) {
			require.Len(t, args, 1)
			written = vm.GetNumber(ctx, args[0])
			return nil, nil
		},
		Enumerable: true,
	}
	require.NoError(t, vm.DefineProp(ctx, obj, "computed", desc))

	for want := 10.0; want <= 20; want += 10 {
		got, err := vm.GetProp(ctx, obj, "computed")
		require.NoError(t, err)
		assert.Equal(t, want, vm.GetNumber(ctx, got), "getter runs on every read")
		require.NoError(t, got.Dispose())
	}

	n, err := vm.NewNumber(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, vm.SetProp(ctx, obj, "computed", n))
	assert.Equal(t, float64(5), written)

	require.NoError(t, n.Dispose())
	require.NoError(t, obj.Dispose())
	assert.Equal(t, 0, eng.LiveValues(), "accessor function handles are released")
	assert.Empty(t, eng.Violations())
}

func TestVM_DefinePropInvalid(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	defer obj.Dispose()

	err = vm.DefineProp(ctx, obj, "both", PropertyDescriptor{
		Value: vm.Undefined(),
		Get: func(context.Context, *Handle, []*Handle) (*Handle, error) {
			return nil, nil
		},
	})
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindInvalidInput, e.Kind)
}

func TestVM_GetterThrows(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	obj, err := vm.NewObject(ctx, nil)
	require.NoError(t, err)
	defer obj.Dispose()

	require.NoError(t, vm.DefineProp(ctx, obj, "bad", PropertyDescriptor{
		Get: func(context.Context, *Handle, []*Handle) (*Handle, error) {
			return nil, &HostError{Name: "RangeError", Message: "nope"}
		},
	}))

	before := eng.LiveValues()
	_, err = vm.GetProp(ctx, obj, "bad")
	require.Error(t, err)
	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "RangeError", he.Name)
	assert.Equal(t, "nope", he.Message)
	assert.Equal(t, before, eng.LiveValues(), "exception handle released")
}

func TestVM_NewFunction(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	_, err := vm.NewFunction(ctx, "nil", nil)
	assert.Error(t, err)

	before := eng.LiveValues()
	fn, err := vm.NewFunction(ctx, "double", func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error) {
		return vm.NewNumber(ctx, vm.GetNumber(ctx, args[0])*2)
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, eng.LiveValues(), "scratch id number is released")

	ty, err := vm.Typeof(ctx, fn)
	require.NoError(t, err)
	assert.Equal(t, "function", ty)

	name, err := vm.GetProp(ctx, fn, "name")
	require.NoError(t, err)
	s, err := vm.GetString(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "double", s)

	require.NoError(t, name.Dispose())
	require.NoError(t, fn.Dispose())
}

func TestVM_FunctionIDsNotReused(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	noop := func(context.Context, *Handle, []*Handle) (*Handle, error) { return nil, nil }
	for i := 0; i < 3; i++ {
		fn, err := vm.NewFunction(ctx, "f", noop)
		require.NoError(t, err)
		require.NoError(t, fn.Dispose())
	}
	assert.Equal(t, 3, vm.callbacks.Len())
	assert.EqualValues(t, 3, vm.callbacks.Last())
}

func TestVM_NewFunctionScratchReleaseFails(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	eng.FailOn("FreeValue", assert.AnError)
	fn, err := vm.NewFunction(ctx, "f", func(context.Context, *Handle, []*Handle) (*Handle, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, fn)
	assert.Equal(t, 0, vm.callbacks.Len(), "the callback is unregistered")
	assert.Empty(t, eng.Violations())
}

func TestVM_SetGlobal(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	require.NoError(t, vm.SetGlobal(ctx, "double", func(ctx context.Context, this *Handle, args []*Handle) (*Handle, error) {
		return vm.NewNumber(ctx, vm.GetNumber(ctx, args[0])*2)
	}))

	res, err := vm.EvalCode(ctx, "double(21)")
	require.NoError(t, err)
	v, err := vm.UnwrapResult(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, float64(42), vm.GetNumber(ctx, v))
	require.NoError(t, v.Dispose())

	assert.Equal(t, 1, eng.LiveValues(), "only the memoized global remains")
	assert.Empty(t, eng.Violations())
}
