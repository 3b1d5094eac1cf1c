package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	eng, vm := newTestVM(t)
	ctx := context.Background()

	tests := []struct {
		src  string
		want any
	}{
		{"'text'", "text"},
		{"'123'", "123"},
		{"1.5", 1.5},
		{"undefined", nil},
		{"null", nil},
		{"true", true},
		{"({a: 1, b: 'x'})", map[string]any{"a": float64(1), "b": "x"}},
		{"[1, 'two', null]", []any{float64(1), "two", nil}},
		{"new TypeError('t')", map[string]any{"name": "TypeError", "message": "t"}},
		{"let a = {}; a.self = a; a", "[object Object]"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res, err := vm.EvalCode(ctx, tt.src)
			require.NoError(t, err)
			v, err := vm.UnwrapResult(ctx, res)
			require.NoError(t, err)
			defer v.Dispose()

			got, err := vm.Dump(ctx, v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 0, eng.LiveValues())
}

func TestDump_RawTextFallback(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	res, err := vm.EvalCode(ctx, "Error")
	require.NoError(t, err)
	v, err := vm.UnwrapResult(ctx, res)
	require.NoError(t, err)
	defer v.Dispose()

	got, err := vm.Dump(ctx, v)
	require.NoError(t, err)
	s, ok := got.(string)
	require.True(t, ok, "functions have no JSON form")
	assert.Contains(t, s, "function Error()")
}

func TestHostErrorShape(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want HostError
	}{
		{"error object", map[string]any{"name": "TypeError", "message": "bad"}, HostError{Name: "TypeError", Message: "bad"}},
		{"message only", map[string]any{"message": "m"}, HostError{Message: "m"}},
		{"no message", map[string]any{"name": "X"}, HostError{}},
		{"number", float64(1), HostError{}},
		{"string", "thrown", HostError{}},
		{"nil", nil, HostError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := hostError(tt.in)
			assert.Equal(t, tt.want.Name, he.Name)
			assert.Equal(t, tt.want.Message, he.Message)
			assert.Equal(t, tt.in, he.Value)
		})
	}
}
