package boundarytest

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/jsvm/boundary"
)

func setup(t *testing.T) (*Engine, boundary.RuntimePtr, boundary.ContextPtr) {
	t.Helper()
	e := New()
	ctx := context.Background()
	rt, err := e.NewRuntime(ctx)
	require.NoError(t, err)
	c, err := e.NewContext(ctx, rt)
	require.NoError(t, err)
	return e, rt, c
}

func evalOK(t *testing.T, e *Engine, c boundary.ContextPtr, src string) boundary.ValuePtr {
	t.Helper()
	ctx := context.Background()
	p, err := e.Eval(ctx, c, src)
	require.NoError(t, err)
	exc, err := e.ResolveException(ctx, c, p)
	require.NoError(t, err)
	if exc != 0 {
		text, _ := e.Dump(ctx, c, exc)
		t.Fatalf("eval %q threw %s", src, text)
	}
	return p
}

func TestEval_Expressions(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	tests := []struct {
		src  string
		dump string
	}{
		{"1 + 1", "2"},
		{"2 * 3 + 4", "10"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"7 % 3", "1"},
		{"-5 + 2", "-3"},
		{"'a' + 'b'", `"ab"`},
		{"'n' + 1", `"n1"`},
		{"1 === 1", "true"},
		{"1 == '1'", "true"},
		{"null == undefined", "true"},
		{"1 !== 1", "false"},
		{"2 < 3", "true"},
		{"typeof 1", `"number"`},
		{"typeof missing", `"undefined"`},
		{"typeof Error", `"function"`},
		{"({a: 1, b: 'x'})", `{"a":1,"b":"x"}`},
		{"[1, 'two', null]", `[1,"two",null]`},
		{"'hello'.length", "5"},
		{"let x = 4; x * x", "16"},
		{"var o = {}; o.k = 3; o.k", "3"},
		{"null", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p := evalOK(t, e, c, tt.src)
			got, err := e.Dump(ctx, c, p)
			require.NoError(t, err)
			assert.Equal(t, tt.dump, got)
			require.NoError(t, e.FreeValue(ctx, c, p))
		})
	}
}

func TestEval_Throw(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	tests := []struct {
		src  string
		dump string
	}{
		{"throw new Error('x')", `{"name":"Error","message":"x"}`},
		{"throw new TypeError('bad')", `{"name":"TypeError","message":"bad"}`},
		{"throw Error()", `{"name":"Error","message":""}`},
		{"throw 42", "42"},
		{"nope", `{"name":"ReferenceError","message":"nope is not defined"}`},
		{"1 +", `{"name":"SyntaxError","message":"unexpected end of input"}`},
		{"undefined.x", `{"name":"TypeError","message":"cannot read property 'x' of undefined"}`},
		{"(1)()", `{"name":"TypeError","message":"expression is not a function"}`},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p, err := e.Eval(ctx, c, tt.src)
			require.NoError(t, err)

			exc, err := e.ResolveException(ctx, c, p)
			require.NoError(t, err)
			require.NotZero(t, exc, "expected exception")

			got, err := e.Dump(ctx, c, exc)
			require.NoError(t, err)
			assert.Equal(t, tt.dump, got)

			require.NoError(t, e.FreeValue(ctx, c, exc))
			require.NoError(t, e.FreeValue(ctx, c, p))
		})
	}
}

func TestDump_Fallbacks(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	p := evalOK(t, e, c, "undefined")
	got, err := e.Dump(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, "undefined", got)

	p = evalOK(t, e, c, "Error")
	got, err = e.Dump(ctx, c, p)
	require.NoError(t, err)
	assert.Contains(t, got, "function Error()")

	p = evalOK(t, e, c, "let a = {}; a.self = a; a")
	got, err = e.Dump(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, "[object Object]", got)
}

func TestConversions(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	s, err := e.NewString(ctx, c, "abc")
	require.NoError(t, err)
	f, err := e.GetFloat64(ctx, c, s)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f))

	n, err := e.NewFloat64(ctx, c, 0.5)
	require.NoError(t, err)
	str, err := e.GetString(ctx, c, n)
	require.NoError(t, err)
	assert.Equal(t, "0.5", str)

	ty, err := e.Typeof(ctx, c, n)
	require.NoError(t, err)
	assert.Equal(t, "number", ty)

	assert.Equal(t, "1e+21", formatNumber(1e21))
	assert.Equal(t, "1.5e-7", formatNumber(1.5e-7))
	assert.Equal(t, "-Infinity", formatNumber(math.Inf(-1)))
}

func TestHostCallback_Roundtrip(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	var seen []float64
	require.NoError(t, e.SetHostCallback(func(ctx context.Context, cp boundary.ContextPtr, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr, data boundary.ValuePtr) boundary.ValuePtr {
		id, err := e.GetFloat64(ctx, cp, data)
		require.NoError(t, err)
		assert.Equal(t, float64(7), id)

		sum := 0.0
		for i := int32(0); i < argc; i++ {
			addr, err := e.ArgvGetAddress(ctx, argv, i)
			require.NoError(t, err)
			v, err := e.GetFloat64(ctx, cp, addr)
			require.NoError(t, err)
			seen = append(seen, v)
			sum += v
		}
		out, err := e.NewFloat64(ctx, cp, sum)
		require.NoError(t, err)
		return out
	}))
	assert.Error(t, e.SetHostCallback(nil), "second callback must be rejected")

	id, err := e.NewFloat64(ctx, c, 7)
	require.NoError(t, err)
	fn, err := e.NewFunction(ctx, c, id, "add")
	require.NoError(t, err)
	require.NoError(t, e.FreeValue(ctx, c, id))

	global, err := e.GetGlobalObject(ctx, c)
	require.NoError(t, err)
	key, err := e.NewString(ctx, c, "add")
	require.NoError(t, err)
	require.NoError(t, e.SetProp(ctx, c, global, key, fn))

	before := e.LiveValues()
	p := evalOK(t, e, c, "add(1, 2, 3)")
	got, err := e.GetFloat64(ctx, c, p)
	require.NoError(t, err)
	assert.Equal(t, float64(6), got)
	assert.Equal(t, []float64{1, 2, 3}, seen)
	assert.Equal(t, before+1, e.LiveValues(), "only the result should remain")
	assert.Empty(t, e.Violations())
}

func TestHostCallback_BorrowedMustNotBeFreed(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	require.NoError(t, e.SetHostCallback(func(ctx context.Context, cp boundary.ContextPtr, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr, data boundary.ValuePtr) boundary.ValuePtr {
		assert.Error(t, e.FreeValue(ctx, cp, this))
		return 0
	}))

	id, err := e.NewFloat64(ctx, c, 1)
	require.NoError(t, err)
	fn, err := e.NewFunction(ctx, c, id, "f")
	require.NoError(t, err)
	undef, err := e.GetUndefined(ctx)
	require.NoError(t, err)

	res, err := e.Call(ctx, c, fn, undef, 0, 0)
	require.NoError(t, err)
	ty, err := e.Typeof(ctx, c, res)
	require.NoError(t, err)
	assert.Equal(t, "undefined", ty)
	assert.Len(t, e.Violations(), 1)
}

func TestCall_ReadsArgvPointers(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	ctor := evalOK(t, e, c, "TypeError")
	msg, err := e.NewString(ctx, c, "from argv")
	require.NoError(t, err)

	argv, err := e.Malloc(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, e.Memory().WriteU32(argv, uint32(msg)))

	undef, _ := e.GetUndefined(ctx)
	res, err := e.Call(ctx, c, ctor, undef, 1, boundary.ArgvPtr(argv))
	require.NoError(t, err)
	require.NoError(t, e.Free(ctx, argv))

	got, err := e.Dump(ctx, c, res)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"TypeError","message":"from argv"}`, got)
	assert.Equal(t, 2, e.LiveBlocks(), "runtime and context blocks only")
}

func TestDefineProp_Accessor(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	require.NoError(t, e.SetHostCallback(func(ctx context.Context, cp boundary.ContextPtr, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr, data boundary.ValuePtr) boundary.ValuePtr {
		out, _ := e.NewString(ctx, cp, "computed")
		return out
	}))

	obj, _ := e.NewObject(ctx, c)
	key, _ := e.NewString(ctx, c, "v")
	id, _ := e.NewFloat64(ctx, c, 1)
	getter, _ := e.NewFunction(ctx, c, id, "get v")
	undef, _ := e.GetUndefined(ctx)

	require.NoError(t, e.DefineProp(ctx, c, obj, key, boundary.DefineArgs{
		Value:      undef,
		Get:        getter,
		Set:        undef,
		Enumerable: true,
	}))

	got, err := e.GetProp(ctx, c, obj, key)
	require.NoError(t, err)
	s, _ := e.GetString(ctx, c, got)
	assert.Equal(t, "computed", s)
	assert.Equal(t, []string{"v"}, e.Keys(obj))

	text, err := e.Dump(ctx, c, obj)
	require.NoError(t, err)
	assert.Equal(t, `{"v":"computed"}`, text)
}

func TestTeardownOrder(t *testing.T) {
	e, rt, c := setup(t)
	ctx := context.Background()

	assert.Error(t, e.FreeRuntime(ctx, rt), "runtime with live context")
	require.NoError(t, e.FreeContext(ctx, c))
	require.NoError(t, e.FreeRuntime(ctx, rt))
	assert.Zero(t, e.Runtimes())
	assert.Zero(t, e.Contexts())
}

func TestFreeValue_Rules(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()

	undef, _ := e.GetUndefined(ctx)
	assert.Error(t, e.FreeValue(ctx, c, undef))

	n, _ := e.NewFloat64(ctx, c, 1)
	require.NoError(t, e.FreeValue(ctx, c, n))
	assert.Error(t, e.FreeValue(ctx, c, n), "double free")
	assert.Zero(t, e.LiveValues())
}

func TestFailOn(t *testing.T) {
	e, _, c := setup(t)
	ctx := context.Background()
	boom := stderrors.New("boom")

	e.FailOn("NewFloat64", boom)
	_, err := e.NewFloat64(ctx, c, 1)
	assert.ErrorIs(t, err, boom)

	_, err = e.NewFloat64(ctx, c, 1)
	assert.NoError(t, err, "failure is one-shot")
}

func TestMemory_Bounds(t *testing.T) {
	e := New()
	mem := e.Memory()

	require.NoError(t, mem.WriteU32(100, 0xdeadbeef))
	v, err := mem.ReadU32(100)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	b, err := mem.Read(100, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xef, 0xbe, 0xad, 0xde}, b)

	_, err = mem.ReadU32(pageSize - 2)
	assert.Error(t, err)
	assert.Error(t, mem.Write(pageSize, []byte{1}))
}
