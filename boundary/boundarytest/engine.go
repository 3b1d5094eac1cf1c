// Package boundarytest provides an in-memory engine implementing
// boundary.Boundary for tests.
//
// The engine keeps a byte-addressed linear memory with malloc/free, hands out
// real addresses for every value, runtime and context, enforces the boundary
// ownership rules (freeing an unknown or borrowed address is an error) and
// evaluates a small expression language so host code can be exercised end to
// end without a wasm build of the interpreter:
//
//	eng := boundarytest.New()
//	mgr, _ := runtime.NewManager(eng)
//	vm, _ := mgr.NewVM(ctx)
//	res := vm.EvalCode(ctx, "1 + 1")
//
// The language covers number and string literals, identifiers resolved on the
// global object, member access, calls, new, unary and binary arithmetic,
// equality, assignment, let/const/var, object and array literals and throw.
// Error, TypeError, RangeError, ReferenceError, SyntaxError, InternalError
// and Object are predefined.
//
// LiveValues, LiveBlocks and Violations let tests assert that the host
// released everything it was handed.
package boundarytest

import (
	"context"
	"fmt"

	"github.com/wippyai/jsvm"
	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
)

const (
	pageSize  = 64 * 1024
	slotSize  = 8
	heapStart = 16
)

type block struct {
	size  uint32
	value bool
}

type runtimeState struct {
	contexts int
}

type contextState struct {
	global      *object
	objectProto *object
	errorProtos map[string]*object
	pending     value
	rt          boundary.RuntimePtr
	ptr         boundary.ContextPtr
}

// Engine is an in-memory boundary.Boundary. It is not safe for concurrent use.
type Engine struct {
	values     map[boundary.ValuePtr]value
	borrowed   map[boundary.ValuePtr]bool
	blocks     map[uint32]block
	free       map[uint32][]uint32
	runtimes   map[boundary.RuntimePtr]*runtimeState
	contexts   map[boundary.ContextPtr]*contextState
	failures   map[string]error
	callback   boundary.HostCallback
	violations []string
	mem        []byte
	next       uint32
	undef      boundary.ValuePtr
}

var _ boundary.Boundary = (*Engine)(nil)

// New creates an empty engine with one page of linear memory.
func New() *Engine {
	e := &Engine{
		values:   make(map[boundary.ValuePtr]value),
		borrowed: make(map[boundary.ValuePtr]bool),
		blocks:   make(map[uint32]block),
		free:     make(map[uint32][]uint32),
		runtimes: make(map[boundary.RuntimePtr]*runtimeState),
		contexts: make(map[boundary.ContextPtr]*contextState),
		failures: make(map[string]error),
		mem:      make([]byte, pageSize),
		next:     heapStart,
	}
	e.undef = e.newPtr(undefined)
	return e
}

// FailOn makes the next call of the named primitive (for example
// "GetFloat64" or "Malloc") return err.
func (e *Engine) FailOn(method string, err error) {
	e.failures[method] = err
}

// Callback returns the installed host callback, or nil.
func (e *Engine) Callback() boundary.HostCallback {
	return e.callback
}

// LiveValues returns the number of value addresses not yet freed, excluding
// the constant undefined address.
func (e *Engine) LiveValues() int {
	return len(e.values) - 1
}

// LiveBlocks returns the number of raw Malloc blocks not yet freed.
func (e *Engine) LiveBlocks() int {
	n := 0
	for _, b := range e.blocks {
		if !b.value {
			n++
		}
	}
	return n
}

// Runtimes returns the number of live runtimes.
func (e *Engine) Runtimes() int {
	return len(e.runtimes)
}

// Contexts returns the number of live contexts.
func (e *Engine) Contexts() int {
	return len(e.contexts)
}

// Violations lists ownership rule breaches observed so far, such as a host
// freeing a value it only borrowed.
func (e *Engine) Violations() []string {
	return append([]string(nil), e.violations...)
}

func (e *Engine) injected(method string) error {
	if err, ok := e.failures[method]; ok {
		delete(e.failures, method)
		return err
	}
	return nil
}

func (e *Engine) violate(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	e.violations = append(e.violations, msg)
	return errors.InvalidInput(errors.PhaseEngine, msg)
}

// alloc reserves size bytes, reusing freed blocks of the same size.
func (e *Engine) alloc(size uint32, isValue bool) uint32 {
	if size == 0 {
		size = 1
	}
	size = (size + 7) &^ 7
	var addr uint32
	if list := e.free[size]; len(list) > 0 {
		addr = list[len(list)-1]
		e.free[size] = list[:len(list)-1]
		clear(e.mem[addr : addr+size])
	} else {
		addr = e.next
		e.next += size
		for uint32(len(e.mem)) < e.next {
			e.mem = append(e.mem, make([]byte, pageSize)...)
		}
	}
	e.blocks[addr] = block{size: size, value: isValue}
	return addr
}

func (e *Engine) release(addr uint32) {
	b := e.blocks[addr]
	delete(e.blocks, addr)
	e.free[b.size] = append(e.free[b.size], addr)
}

func (e *Engine) newPtr(v value) boundary.ValuePtr {
	p := boundary.ValuePtr(e.alloc(slotSize, true))
	e.values[p] = v
	return p
}

func (e *Engine) dropPtr(p boundary.ValuePtr) {
	if _, ok := e.values[p]; !ok {
		return
	}
	delete(e.values, p)
	if b, ok := e.blocks[uint32(p)]; ok && b.value {
		e.release(uint32(p))
	}
}

func (e *Engine) val(p boundary.ValuePtr) (value, error) {
	v, ok := e.values[p]
	if !ok {
		return nil, errors.NotFound(errors.PhaseEngine, "value", p)
	}
	return v, nil
}

func (e *Engine) ctxState(c boundary.ContextPtr) (*contextState, error) {
	s, ok := e.contexts[c]
	if !ok {
		return nil, errors.NotFound(errors.PhaseEngine, "context", c)
	}
	return s, nil
}

func (e *Engine) state(c boundary.ContextPtr, method string) (*contextState, error) {
	if err := e.injected(method); err != nil {
		return nil, err
	}
	return e.ctxState(c)
}

// Malloc implements boundary.Transport.
func (e *Engine) Malloc(_ context.Context, size uint32) (uint32, error) {
	if err := e.injected("Malloc"); err != nil {
		return 0, err
	}
	return e.alloc(size, false), nil
}

// Free implements boundary.Transport. Freeing address 0 is a no-op.
func (e *Engine) Free(_ context.Context, ptr uint32) error {
	if err := e.injected("Free"); err != nil {
		return err
	}
	if ptr == 0 {
		return nil
	}
	b, ok := e.blocks[ptr]
	if !ok {
		return e.violate("free of unknown block 0x%x", ptr)
	}
	if b.value {
		return e.violate("free of value address 0x%x through Free", ptr)
	}
	e.release(ptr)
	return nil
}

// Memory implements boundary.Transport.
func (e *Engine) Memory() jsvm.Memory {
	return linearMemory{e}
}

// NewRuntime implements boundary.Boundary.
func (e *Engine) NewRuntime(context.Context) (boundary.RuntimePtr, error) {
	if err := e.injected("NewRuntime"); err != nil {
		return 0, err
	}
	rt := boundary.RuntimePtr(e.alloc(64, false))
	e.runtimes[rt] = &runtimeState{}
	return rt, nil
}

// FreeRuntime implements boundary.Boundary. A runtime with live contexts
// cannot be freed.
func (e *Engine) FreeRuntime(_ context.Context, rt boundary.RuntimePtr) error {
	if err := e.injected("FreeRuntime"); err != nil {
		return err
	}
	st, ok := e.runtimes[rt]
	if !ok {
		return e.violate("free of unknown runtime %s", rt)
	}
	if st.contexts > 0 {
		return e.violate("runtime %s freed with %d live contexts", rt, st.contexts)
	}
	delete(e.runtimes, rt)
	e.release(uint32(rt))
	return nil
}

// NewContext implements boundary.Boundary.
func (e *Engine) NewContext(_ context.Context, rt boundary.RuntimePtr) (boundary.ContextPtr, error) {
	if err := e.injected("NewContext"); err != nil {
		return 0, err
	}
	st, ok := e.runtimes[rt]
	if !ok {
		return 0, errors.NotFound(errors.PhaseEngine, "runtime", rt)
	}
	c := boundary.ContextPtr(e.alloc(64, false))
	s := &contextState{ptr: c, rt: rt, errorProtos: make(map[string]*object)}
	e.installGlobals(s)
	e.contexts[c] = s
	st.contexts++
	return c, nil
}

// FreeContext implements boundary.Boundary.
func (e *Engine) FreeContext(_ context.Context, c boundary.ContextPtr) error {
	if err := e.injected("FreeContext"); err != nil {
		return err
	}
	s, ok := e.contexts[c]
	if !ok {
		return e.violate("free of unknown context %s", c)
	}
	delete(e.contexts, c)
	if st, ok := e.runtimes[s.rt]; ok {
		st.contexts--
	}
	e.release(uint32(c))
	return nil
}

// GetUndefined implements boundary.Boundary. The address never changes.
func (e *Engine) GetUndefined(context.Context) (boundary.ValuePtr, error) {
	if err := e.injected("GetUndefined"); err != nil {
		return 0, err
	}
	return e.undef, nil
}

// GetGlobalObject implements boundary.Boundary.
func (e *Engine) GetGlobalObject(_ context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "GetGlobalObject")
	if err != nil {
		return 0, err
	}
	return e.newPtr(s.global), nil
}

// Typeof implements boundary.Boundary.
func (e *Engine) Typeof(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (string, error) {
	if _, err := e.state(c, "Typeof"); err != nil {
		return "", err
	}
	v, err := e.val(p)
	if err != nil {
		return "", err
	}
	return typeOf(v), nil
}

// NewFloat64 implements boundary.Boundary.
func (e *Engine) NewFloat64(_ context.Context, c boundary.ContextPtr, n float64) (boundary.ValuePtr, error) {
	if _, err := e.state(c, "NewFloat64"); err != nil {
		return 0, err
	}
	return e.newPtr(n), nil
}

// GetFloat64 implements boundary.Boundary with ToNumber semantics.
func (e *Engine) GetFloat64(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (float64, error) {
	if _, err := e.state(c, "GetFloat64"); err != nil {
		return 0, err
	}
	v, err := e.val(p)
	if err != nil {
		return 0, err
	}
	return toNumber(v), nil
}

// NewString implements boundary.Boundary.
func (e *Engine) NewString(_ context.Context, c boundary.ContextPtr, str string) (boundary.ValuePtr, error) {
	if _, err := e.state(c, "NewString"); err != nil {
		return 0, err
	}
	return e.newPtr(str), nil
}

// GetString implements boundary.Boundary with ToString semantics.
func (e *Engine) GetString(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (string, error) {
	if _, err := e.state(c, "GetString"); err != nil {
		return "", err
	}
	v, err := e.val(p)
	if err != nil {
		return "", err
	}
	return toString(v), nil
}

// NewObject implements boundary.Boundary.
func (e *Engine) NewObject(_ context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "NewObject")
	if err != nil {
		return 0, err
	}
	return e.newPtr(newObject(classObject, s.objectProto)), nil
}

// NewObjectProto implements boundary.Boundary. proto must be an object or null.
func (e *Engine) NewObjectProto(_ context.Context, c boundary.ContextPtr, protoPtr boundary.ValuePtr) (boundary.ValuePtr, error) {
	if _, err := e.state(c, "NewObjectProto"); err != nil {
		return 0, err
	}
	pv, err := e.val(protoPtr)
	if err != nil {
		return 0, err
	}
	switch proto := pv.(type) {
	case *object:
		return e.newPtr(newObject(classObject, proto)), nil
	case nullValue:
		return e.newPtr(newObject(classObject, nil)), nil
	}
	return 0, errors.InvalidInput(errors.PhaseEngine, "prototype must be an object or null")
}

// NewFunction implements boundary.Boundary. Calls of the returned function
// reach the host callback with data.
func (e *Engine) NewFunction(_ context.Context, c boundary.ContextPtr, data boundary.ValuePtr, name string) (boundary.ValuePtr, error) {
	s, err := e.state(c, "NewFunction")
	if err != nil {
		return 0, err
	}
	dv, err := e.val(data)
	if err != nil {
		return 0, err
	}
	fn := newObject(classFunction, s.objectProto)
	fn.host = true
	fn.data = dv
	fn.name = name
	fn.setHidden("name", name)
	return e.newPtr(fn), nil
}

// NewError implements boundary.Boundary.
func (e *Engine) NewError(_ context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "NewError")
	if err != nil {
		return 0, err
	}
	return e.newPtr(newObject(classError, s.errorProtos["Error"])), nil
}

// GetProp implements boundary.Boundary. A throwing getter yields an
// exception marker.
func (e *Engine) GetProp(ctx context.Context, c boundary.ContextPtr, objPtr, keyPtr boundary.ValuePtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "GetProp")
	if err != nil {
		return 0, err
	}
	obj, key, err := e.pair(objPtr, keyPtr)
	if err != nil {
		return 0, err
	}
	v, threw := e.getProp(ctx, s, obj, propertyKey(key))
	if threw {
		return e.newPtr(exception), nil
	}
	return e.newPtr(v), nil
}

// SetProp implements boundary.Boundary. Exceptions raised by setters stay
// pending.
func (e *Engine) SetProp(ctx context.Context, c boundary.ContextPtr, objPtr, keyPtr, valPtr boundary.ValuePtr) error {
	s, err := e.state(c, "SetProp")
	if err != nil {
		return err
	}
	obj, key, err := e.pair(objPtr, keyPtr)
	if err != nil {
		return err
	}
	v, err := e.val(valPtr)
	if err != nil {
		return err
	}
	e.setProp(ctx, s, obj, propertyKey(key), v)
	return nil
}

// DefineProp implements boundary.Boundary. A getter or setter that is not
// undefined makes an accessor property.
func (e *Engine) DefineProp(_ context.Context, c boundary.ContextPtr, objPtr, keyPtr boundary.ValuePtr, args boundary.DefineArgs) error {
	if _, err := e.state(c, "DefineProp"); err != nil {
		return err
	}
	ov, key, err := e.pair(objPtr, keyPtr)
	if err != nil {
		return err
	}
	obj, ok := ov.(*object)
	if !ok {
		return errors.InvalidInput(errors.PhaseEngine, "define property on non-object")
	}
	val, err := e.val(args.Value)
	if err != nil {
		return err
	}
	get, err := e.val(args.Get)
	if err != nil {
		return err
	}
	set, err := e.val(args.Set)
	if err != nil {
		return err
	}

	p := &property{enumerable: args.Enumerable, configurable: args.Configurable}
	getter, hasGet := get.(*object)
	setter, hasSet := set.(*object)
	switch {
	case hasGet || hasSet:
		p.accessor = true
		p.getter = getter
		p.setter = setter
	case args.HasValue:
		p.value = val
	default:
		p.value = undefined
	}
	obj.define(propertyKey(key), p)
	return nil
}

// Call implements boundary.Boundary. argv is an array of argc value
// addresses, little-endian.
func (e *Engine) Call(ctx context.Context, c boundary.ContextPtr, fnPtr, thisPtr boundary.ValuePtr, argc int32, argv boundary.ArgvPtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "Call")
	if err != nil {
		return 0, err
	}
	fn, this, err := e.pair(fnPtr, thisPtr)
	if err != nil {
		return 0, err
	}
	mem := e.Memory()
	args := make([]value, argc)
	for i := range args {
		addr, err := mem.ReadU32(uint32(argv) + uint32(i)*jsvm.PointerSize)
		if err != nil {
			return 0, err
		}
		if args[i], err = e.val(boundary.ValuePtr(addr)); err != nil {
			return 0, err
		}
	}
	res, threw := e.invoke(ctx, s, fn, this, args, false)
	if threw {
		return e.newPtr(exception), nil
	}
	return e.newPtr(res), nil
}

// Eval implements boundary.Boundary.
func (e *Engine) Eval(ctx context.Context, c boundary.ContextPtr, source string) (boundary.ValuePtr, error) {
	s, err := e.state(c, "Eval")
	if err != nil {
		return 0, err
	}
	res, threw := e.evaluate(ctx, s, source)
	if threw {
		return e.newPtr(exception), nil
	}
	return e.newPtr(res), nil
}

// ResolveException implements boundary.Boundary.
func (e *Engine) ResolveException(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "ResolveException")
	if err != nil {
		return 0, err
	}
	v, err := e.val(p)
	if err != nil {
		return 0, err
	}
	if _, ok := v.(exceptionMarker); !ok {
		return 0, nil
	}
	exc := s.pending
	s.pending = nil
	if exc == nil {
		exc = undefined
	}
	return e.newPtr(exc), nil
}

// Throw implements boundary.Boundary.
func (e *Engine) Throw(_ context.Context, c boundary.ContextPtr, errPtr boundary.ValuePtr) (boundary.ValuePtr, error) {
	s, err := e.state(c, "Throw")
	if err != nil {
		return 0, err
	}
	v, err := e.val(errPtr)
	if err != nil {
		return 0, err
	}
	s.pending = v
	return e.newPtr(exception), nil
}

// FreeValue implements boundary.Boundary.
func (e *Engine) FreeValue(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) error {
	if _, err := e.state(c, "FreeValue"); err != nil {
		return err
	}
	switch {
	case p == e.undef:
		return e.violate("free of constant undefined %s", p)
	case e.borrowed[p]:
		return e.violate("free of borrowed %s", p)
	}
	if _, ok := e.values[p]; !ok {
		return e.violate("free of unknown %s", p)
	}
	e.dropPtr(p)
	return nil
}

// DupValue implements boundary.Boundary.
func (e *Engine) DupValue(_ context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (boundary.ValuePtr, error) {
	if _, err := e.state(c, "DupValue"); err != nil {
		return 0, err
	}
	v, err := e.val(p)
	if err != nil {
		return 0, err
	}
	return e.newPtr(v), nil
}

// Dump implements boundary.Boundary. Errors dump as {name, message}, other
// values as JSON, and values without a JSON form as their string conversion.
func (e *Engine) Dump(ctx context.Context, c boundary.ContextPtr, p boundary.ValuePtr) (string, error) {
	s, err := e.state(c, "Dump")
	if err != nil {
		return "", err
	}
	v, err := e.val(p)
	if err != nil {
		return "", err
	}
	return e.dump(ctx, s, v), nil
}

// SetHostCallback implements boundary.Boundary. Only one callback may be
// installed for the life of the engine.
func (e *Engine) SetHostCallback(cb boundary.HostCallback) error {
	if err := e.injected("SetHostCallback"); err != nil {
		return err
	}
	if e.callback != nil {
		return errors.AlreadyExists(errors.PhaseEngine, "host callback")
	}
	e.callback = cb
	return nil
}

// ArgvGetAddress implements boundary.Boundary. Host call arguments are laid
// out as consecutive value slots.
func (e *Engine) ArgvGetAddress(_ context.Context, argv boundary.ArgvPtr, i int32) (boundary.ValuePtr, error) {
	if err := e.injected("ArgvGetAddress"); err != nil {
		return 0, err
	}
	return boundary.ValuePtr(uint32(argv) + uint32(i)*slotSize), nil
}

func (e *Engine) pair(a, b boundary.ValuePtr) (value, value, error) {
	av, err := e.val(a)
	if err != nil {
		return nil, nil, err
	}
	bv, err := e.val(b)
	if err != nil {
		return nil, nil, err
	}
	return av, bv, nil
}

// callHost lends this, the arguments and the function data to the host
// callback for the duration of one call.
func (e *Engine) callHost(ctx context.Context, s *contextState, fn *object, this value, args []value) (value, bool) {
	if e.callback == nil {
		return e.throwError(s, "InternalError", "host callback not installed")
	}

	thisPtr := e.lend(this)
	dataPtr := e.lend(fn.data)
	var argv uint32
	if len(args) > 0 {
		argv = e.alloc(uint32(len(args))*slotSize, false)
		for i, a := range args {
			slot := boundary.ValuePtr(argv + uint32(i)*slotSize)
			e.values[slot] = a
			e.borrowed[slot] = true
		}
	}

	ret := e.callback(ctx, s.ptr, thisPtr, int32(len(args)), boundary.ArgvPtr(argv), dataPtr)

	var (
		res   value = undefined
		owned       = true
	)
	if ret != 0 {
		res, owned = e.values[ret]
		owned = owned && !e.borrowed[ret] && ret != e.undef
	}

	e.reclaim(thisPtr)
	e.reclaim(dataPtr)
	if argv != 0 {
		for i := range args {
			e.reclaim(boundary.ValuePtr(argv + uint32(i)*slotSize))
		}
		e.release(argv)
	}

	if ret == 0 {
		return undefined, false
	}
	if !owned {
		_ = e.violate("host returned %s it does not own", ret)
		return e.throwError(s, "InternalError", "invalid host return value")
	}
	e.dropPtr(ret)
	if _, isExc := res.(exceptionMarker); isExc {
		return nil, true
	}
	return res, false
}

func (e *Engine) lend(v value) boundary.ValuePtr {
	p := e.newPtr(v)
	e.borrowed[p] = true
	return p
}

func (e *Engine) reclaim(p boundary.ValuePtr) {
	if !e.borrowed[p] {
		return
	}
	delete(e.borrowed, p)
	if _, ok := e.values[p]; !ok {
		_ = e.violate("borrowed %s vanished during host call", p)
		return
	}
	e.dropPtr(p)
}

func (e *Engine) throwError(s *contextState, name, msg string) (value, bool) {
	s.pending = e.newErrorObject(s, name, msg)
	return nil, true
}

func (e *Engine) newErrorObject(s *contextState, name, msg string) *object {
	proto := s.errorProtos[name]
	if proto == nil {
		proto = s.errorProtos["Error"]
	}
	o := newObject(classError, proto)
	if msg != "" {
		o.setHidden("message", msg)
	}
	return o
}

// invoke calls fn. construct selects new-call semantics.
func (e *Engine) invoke(ctx context.Context, s *contextState, fn, this value, args []value, construct bool) (value, bool) {
	o, ok := fn.(*object)
	if !ok || !o.callable() {
		return e.throwError(s, "TypeError", "not a function")
	}
	if o.native != nil {
		return o.native(ctx, s, this, args, construct)
	}
	if construct {
		this = newObject(classObject, s.objectProto)
	}
	res, threw := e.callHost(ctx, s, o, this, args)
	if threw {
		return nil, true
	}
	if _, isObj := res.(*object); construct && !isObj {
		return this, false
	}
	return res, false
}

func (e *Engine) getProp(ctx context.Context, s *contextState, obj value, key string) (value, bool) {
	switch o := obj.(type) {
	case *object:
		p := o.lookup(key)
		if p == nil {
			return undefined, false
		}
		if p.accessor {
			if p.getter == nil {
				return undefined, false
			}
			return e.invoke(ctx, s, p.getter, o, nil, false)
		}
		return p.value, false
	case string:
		runes := []rune(o)
		if key == "length" {
			return float64(len(runes)), false
		}
		if i, ok := arrayIndex(key); ok && i < len(runes) {
			return string(runes[i]), false
		}
		return undefined, false
	case undefinedValue, nullValue:
		return e.throwError(s, "TypeError", fmt.Sprintf("cannot read property '%s' of %s", key, toString(o)))
	}
	return undefined, false
}

func (e *Engine) setProp(ctx context.Context, s *contextState, obj value, key string, v value) bool {
	o, ok := obj.(*object)
	if !ok {
		if isNullish(obj) {
			_, threw := e.throwError(s, "TypeError", fmt.Sprintf("cannot set property '%s' of %s", key, toString(obj)))
			return threw
		}
		return false
	}
	if p := o.lookup(key); p != nil && p.accessor {
		if p.setter == nil {
			return false
		}
		_, threw := e.invoke(ctx, s, p.setter, o, []value{v}, false)
		return threw
	}
	if p := o.own(key); p != nil {
		p.value = v
	} else {
		o.set(key, v)
	}
	if o.class == classArray {
		if i, ok := arrayIndex(key); ok && i >= o.arrayLength() {
			o.setHidden("length", float64(i+1))
		}
	}
	return false
}

// Keys returns the own enumerable keys of the object behind p in insertion
// order. It is a test helper and does not go through the host callback.
func (e *Engine) Keys(p boundary.ValuePtr) []string {
	v, ok := e.values[p]
	if !ok {
		return nil
	}
	o, ok := v.(*object)
	if !ok {
		return nil
	}
	var keys []string
	for _, k := range o.keys {
		if o.props[k].enumerable {
			keys = append(keys, k)
		}
	}
	return keys
}
