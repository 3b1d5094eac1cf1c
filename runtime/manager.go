package runtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
)

// The engine accepts a single host callback per process, so only one
// Manager may be open at a time.
var (
	guardMu sync.Mutex
	current *Manager
)

// Manager owns the host-callback trampoline and the table that routes
// callbacks from an engine context to the VM that created it.
type Manager struct {
	b      boundary.Boundary
	log    *zap.Logger
	vms    map[boundary.ContextPtr]*VM
	mu     sync.RWMutex
	closed bool
}

// NewManager registers the trampoline with b. It fails with
// errors.ErrNotInitialized when b is nil and errors.ErrManagerExists while
// another Manager is open. An engine accepts its host callback once, so b
// must not have served an earlier Manager.
func NewManager(b boundary.Boundary, opts ...Option) (*Manager, error) {
	if b == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "engine boundary")
	}

	guardMu.Lock()
	defer guardMu.Unlock()
	if current != nil {
		return nil, errors.AlreadyExists(errors.PhaseRuntime, "runtime manager")
	}

	m := &Manager{
		b:   b,
		log: Logger(),
		vms: make(map[boundary.ContextPtr]*VM),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := b.SetHostCallback(m.trampoline); err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEngineCall, err, "install host callback")
	}
	current = m
	return m, nil
}

// NewVM creates an engine runtime and a context on it and returns the VM
// wrapping both. The VM must be disposed.
func (m *Manager) NewVM(ctx context.Context) (*VM, error) {
	if m.isClosed() {
		return nil, errors.Disposed("runtime manager")
	}

	rt, err := m.b.NewRuntime(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEngineCall, err, "create runtime")
	}
	c, err := m.b.NewContext(ctx, rt)
	if err != nil {
		_ = m.b.FreeRuntime(ctx, rt)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEngineCall, err, "create context")
	}
	undef, err := m.b.GetUndefined(ctx)
	if err != nil {
		_ = m.b.FreeContext(ctx, c)
		_ = m.b.FreeRuntime(ctx, rt)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindEngineCall, err, "read undefined")
	}

	vm := newVM(m, rt, c, undef)

	m.mu.Lock()
	m.vms[c] = vm
	m.mu.Unlock()

	vm.log.Debug("vm created", zap.Uint32("runtime", uint32(rt)))
	return vm, nil
}

// VMs returns the number of VMs that have not been disposed.
func (m *Manager) VMs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vms)
}

// Boundary returns the engine boundary the manager drives.
func (m *Manager) Boundary() boundary.Boundary {
	return m.b
}

// Close disposes every remaining VM and releases the process guard. The
// trampoline stays installed in the engine and routes nothing once the table
// is empty; a new Manager needs a freshly loaded engine.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	vms := make([]*VM, 0, len(m.vms))
	for _, vm := range m.vms {
		vms = append(vms, vm)
	}
	m.mu.Unlock()

	var firstErr error
	for _, vm := range vms {
		if err := vm.Dispose(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	guardMu.Lock()
	if current == m {
		current = nil
	}
	guardMu.Unlock()
	return firstErr
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) lookup(c boundary.ContextPtr) (*VM, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vm, ok := m.vms[c]
	return vm, ok
}

func (m *Manager) deregister(c boundary.ContextPtr) {
	m.mu.Lock()
	delete(m.vms, c)
	m.mu.Unlock()
}

// trampoline is the only function the engine ever calls back into. Routing
// failures are logged and turned into an undefined result; nothing escapes
// into the engine.
func (m *Manager) trampoline(ctx context.Context, c boundary.ContextPtr, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr, data boundary.ValuePtr) (ret boundary.ValuePtr) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("host callback panicked",
				zap.Stringer("context", c),
				zap.String("panic", fmt.Sprint(r)))
			ret = 0
		}
	}()

	vm, ok := m.lookup(c)
	if !ok {
		m.log.Error("host callback for unknown context",
			zap.Error(errors.NotFound(errors.PhaseDispatch, "vm for context", c)))
		return 0
	}

	ret, err := vm.dispatch(ctx, c, this, argc, argv, data)
	if err != nil {
		vm.log.Error("host callback dispatch failed", zap.Error(err))
		return 0
	}
	return ret
}
