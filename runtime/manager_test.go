package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/boundary/boundarytest"
	"github.com/wippyai/jsvm/errors"
)

func newTestManager(t *testing.T, opts ...Option) (*boundarytest.Engine, *Manager) {
	t.Helper()
	eng := boundarytest.New()
	if len(opts) == 0 {
		opts = []Option{WithLogger(zaptest.NewLogger(t))}
	}
	mgr, err := NewManager(eng, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return eng, mgr
}

func newTestVM(t *testing.T) (*boundarytest.Engine, *VM) {
	t.Helper()
	eng, mgr := newTestManager(t)
	vm, err := mgr.NewVM(context.Background())
	require.NoError(t, err)
	return eng, vm
}

func TestNewManager_NilBoundary(t *testing.T) {
	_, err := NewManager(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotInitialized)
}

func TestNewManager_OnePerProcess(t *testing.T) {
	first, err := NewManager(boundarytest.New())
	require.NoError(t, err)

	_, err = NewManager(boundarytest.New())
	assert.ErrorIs(t, err, errors.ErrManagerExists)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "close is idempotent")

	second, err := NewManager(boundarytest.New())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestNewManager_InstallsTrampoline(t *testing.T) {
	eng, mgr := newTestManager(t)
	assert.NotNil(t, eng.Callback())
	assert.Same(t, eng, mgr.Boundary())

	// The engine accepts one callback, so a second manager on it fails.
	require.NoError(t, mgr.Close())
	_, err := NewManager(eng)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.PhaseRuntime, errors.KindEngineCall).Build())

	// The failed attempt must not hold the guard.
	m, err := NewManager(boundarytest.New())
	require.NoError(t, err)
	require.NoError(t, m.Close())
}

func TestManager_NewVM(t *testing.T) {
	eng, mgr := newTestManager(t)
	ctx := context.Background()

	vm, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	assert.True(t, vm.Alive())
	assert.False(t, vm.Context().IsNull())
	assert.Equal(t, 1, mgr.VMs())
	assert.Equal(t, 1, eng.Runtimes())
	assert.Equal(t, 1, eng.Contexts())

	require.NoError(t, vm.Dispose())
	assert.False(t, vm.Alive())
	assert.Equal(t, 0, mgr.VMs())
	assert.Equal(t, 0, eng.Runtimes())
	assert.Equal(t, 0, eng.Contexts())

	assert.ErrorIs(t, vm.Dispose(), errors.ErrDisposed)
	assert.Empty(t, eng.Violations())
}

func TestManager_NewVMFailures(t *testing.T) {
	eng, mgr := newTestManager(t)
	ctx := context.Background()

	eng.FailOn("NewContext", assert.AnError)
	_, err := mgr.NewVM(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, eng.Runtimes(), "runtime released when the context fails")
	assert.Equal(t, 0, mgr.VMs())

	eng.FailOn("NewRuntime", assert.AnError)
	_, err = mgr.NewVM(ctx)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManager_Close(t *testing.T) {
	eng, mgr := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	b, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	_, err = b.Global(ctx)
	require.NoError(t, err)

	require.NoError(t, mgr.Close())
	assert.False(t, a.Alive())
	assert.False(t, b.Alive())
	assert.Equal(t, 0, mgr.VMs())
	assert.Equal(t, 0, eng.Contexts())
	assert.Equal(t, 0, eng.LiveValues())

	_, err = mgr.NewVM(ctx)
	assert.ErrorIs(t, err, errors.ErrDisposed)
}

func TestManager_DisposeOrder(t *testing.T) {
	eng, mgr := newTestManager(t)
	ctx := context.Background()

	vm, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	_, err = vm.Global(ctx)
	require.NoError(t, err)

	// FreeRuntime fails while a context is still alive, so a successful
	// dispose means the context went first. The global is freed through
	// the context, so it must go before both.
	require.NoError(t, vm.Dispose())
	assert.Equal(t, 0, eng.LiveValues())
	assert.Empty(t, eng.Violations())
}

func TestTrampoline_UnknownContext(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	eng, _ := newTestManager(t, WithLogger(zap.New(core)))

	ret := eng.Callback()(context.Background(), boundary.ContextPtr(0xdead), 0, 0, 0, 0)
	assert.Zero(t, ret)
	assert.Equal(t, 1, logs.FilterMessage("host callback for unknown context").Len())
}

func TestTrampoline_UnknownFunction(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	eng, mgr := newTestManager(t, WithLogger(zap.New(core)))
	ctx := context.Background()

	vm, err := mgr.NewVM(ctx)
	require.NoError(t, err)
	id, err := vm.NewNumber(ctx, 999)
	require.NoError(t, err)
	defer id.Dispose()
	idp, err := id.Value()
	require.NoError(t, err)
	undef, _ := vm.Undefined().Value()

	ret := eng.Callback()(ctx, vm.Context(), undef, 0, 0, idp)
	assert.Zero(t, ret)
	entries := logs.FilterMessage("host callback dispatch failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(vm.Context()), entries[0].ContextMap()["context"])
}

func TestDispatch_RoutingErrors(t *testing.T) {
	_, vm := newTestVM(t)
	ctx := context.Background()

	undef, _ := vm.Undefined().Value()
	id, err := vm.NewNumber(ctx, 42)
	require.NoError(t, err)
	defer id.Dispose()
	idp, _ := id.Value()

	_, err = vm.dispatch(ctx, vm.Context()+1, undef, 0, 0, idp)
	assert.ErrorIs(t, err, errors.ErrContextMismatch)

	_, err = vm.dispatch(ctx, vm.Context(), undef, 0, 0, idp)
	assert.ErrorIs(t, err, errors.ErrCallbackNotFound)
}

func TestLogger_Default(t *testing.T) {
	assert.NotNil(t, Logger())
	l := zaptest.NewLogger(t)
	SetLogger(l)
	assert.Same(t, l, Logger())
	SetLogger(nil)
	assert.NotNil(t, Logger())
}
