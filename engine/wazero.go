package engine

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/jsvm"
	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/errors"
)

// WazeroEngine runs a QuickJS reactor under wazero and implements
// boundary.Boundary on top of its exports.
type WazeroEngine struct {
	runtime  wazero.Runtime
	module   api.Module
	memory   jsvm.Memory
	callback boundary.HostCallback
	fns      map[string]api.Function
	cache    wazero.CompilationCache
	cfg      Config
	depth    int
	mu       sync.Mutex
}

var _ boundary.Boundary = (*WazeroEngine)(nil)

// Load compiles and instantiates a QuickJS reactor. A nil cfg uses
// DefaultConfig.
func Load(ctx context.Context, wasmBytes []byte, cfg *Config) (*WazeroEngine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(wasmBytes) == 0 {
		return nil, errors.Load("empty wasm module", nil)
	}

	e := &WazeroEngine{cfg: *cfg}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("open compilation cache", err)
		}
		e.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if err := e.instantiate(ctx, wasmBytes); err != nil {
		_ = e.Close(ctx)
		return nil, err
	}

	Logger().Debug("quickjs reactor loaded",
		zap.Int("size", len(wasmBytes)),
		zap.Uint32("memory_pages_limit", cfg.MemoryLimitPages),
		zap.Bool("cached", e.cache != nil))
	return e, nil
}

func (e *WazeroEngine) instantiate(ctx context.Context, wasmBytes []byte) error {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return errors.Instantiation(err)
	}

	i32 := api.ValueTypeI32
	_, err := e.runtime.NewHostModuleBuilder(e.cfg.HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.hostCall), []api.ValueType{i32, i32, i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("ctx", "this", "argc", "argv", "data").
		Export(e.cfg.HostCallbackName).
		Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err)
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return errors.Load("compile failed", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName("quickjs").
		WithStartFunctions("_initialize")
	if e.cfg.InheritStdio {
		modCfg = modCfg.WithStdout(os.Stdout).WithStderr(os.Stderr)
	}

	e.module, err = e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return errors.Instantiation(err)
	}
	if e.memory = WrapMemory(e.module.Memory()); e.memory == nil {
		return errors.Load("wasm module has no memory", nil)
	}

	e.fns = make(map[string]api.Function, len(requiredExports))
	for _, name := range requiredExports {
		fn := e.module.ExportedFunction(name)
		if fn == nil {
			return errors.MissingExport(name)
		}
		e.fns[name] = fn
	}
	return nil
}

// Close releases the wazero runtime and the compilation cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	var err error
	if e.runtime != nil {
		err = e.runtime.Close(ctx)
	}
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// hostCall is the import the reactor calls for every host function.
func (e *WazeroEngine) hostCall(ctx context.Context, _ api.Module, stack []uint64) {
	e.mu.Lock()
	cb := e.callback
	e.mu.Unlock()
	if cb == nil {
		Logger().Error("host function called before a callback was installed")
		stack[0] = 0
		return
	}

	e.depth++
	defer func() { e.depth-- }()

	ret := cb(ctx,
		boundary.ContextPtr(api.DecodeU32(stack[0])),
		boundary.ValuePtr(api.DecodeU32(stack[1])),
		api.DecodeI32(stack[2]),
		boundary.ArgvPtr(api.DecodeU32(stack[3])),
		boundary.ValuePtr(api.DecodeU32(stack[4])))
	stack[0] = api.EncodeU32(uint32(ret))
}

// fn returns the export to call. api.Function is not re-entrant, so calls
// made from inside a host callback use a fresh function object.
func (e *WazeroEngine) fn(name string) api.Function {
	if e.depth > 0 {
		return e.module.ExportedFunction(name)
	}
	return e.fns[name]
}

func (e *WazeroEngine) call(ctx context.Context, name string, params ...uint64) (uint64, error) {
	debugf("call %s %v", name, params)
	results, err := e.fn(name).Call(ctx, params...)
	if err != nil {
		return 0, errors.EngineCall(name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

func (e *WazeroEngine) callPtr(ctx context.Context, name string, params ...uint64) (boundary.ValuePtr, error) {
	r, err := e.call(ctx, name, params...)
	return boundary.ValuePtr(api.DecodeU32(r)), err
}

func u(v uint32) uint64 { return api.EncodeU32(v) }

func flag(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Malloc implements boundary.Transport.
func (e *WazeroEngine) Malloc(ctx context.Context, size uint32) (uint32, error) {
	r, err := e.call(ctx, ExportMalloc, u(size))
	if err != nil {
		return 0, err
	}
	ptr := api.DecodeU32(r)
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseEngine, size)
	}
	return ptr, nil
}

// Free implements boundary.Transport.
func (e *WazeroEngine) Free(ctx context.Context, ptr uint32) error {
	_, err := e.call(ctx, ExportFree, u(ptr))
	return err
}

// Memory implements boundary.Transport.
func (e *WazeroEngine) Memory() jsvm.Memory {
	return e.memory
}

// writeCString copies s into a NUL-terminated heap block owned by the caller.
func (e *WazeroEngine) writeCString(ctx context.Context, s string) (uint32, error) {
	ptr, err := e.Malloc(ctx, uint32(len(s)+1))
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	if err := e.memory.Write(ptr, buf); err != nil {
		_ = e.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

func (e *WazeroEngine) readCString(ptr uint32) (string, error) {
	size := e.module.Memory().Size()
	if ptr >= size {
		return "", errors.OutOfBounds(errors.PhaseMarshal, ptr, 1)
	}
	view, _ := e.module.Memory().Read(ptr, size-ptr)
	if i := bytes.IndexByte(view, 0); i >= 0 {
		return string(view[:i]), nil
	}
	return "", errors.New(errors.PhaseMarshal, errors.KindInvalidData).
		Detail("unterminated string at 0x%x", ptr).
		Build()
}

// withCString passes a temporary C copy of s to fn.
func (e *WazeroEngine) withCString(ctx context.Context, s string, fn func(ptr uint32) (boundary.ValuePtr, error)) (boundary.ValuePtr, error) {
	ptr, err := e.writeCString(ctx, s)
	if err != nil {
		return 0, err
	}
	v, err := fn(ptr)
	if ferr := e.Free(ctx, ptr); ferr != nil && err == nil {
		err = ferr
	}
	return v, err
}

// takeCString reads a string returned by the engine and releases it.
func (e *WazeroEngine) takeCString(ctx context.Context, c boundary.ContextPtr, ptr uint32, heap bool) (string, error) {
	if ptr == 0 {
		return "", errors.New(errors.PhaseEngine, errors.KindInvalidData).Detail("engine returned null string").Build()
	}
	s, err := e.readCString(ptr)
	var ferr error
	if heap {
		ferr = e.Free(ctx, ptr)
	} else {
		_, ferr = e.call(ctx, ExportFreeCString, u(uint32(c)), u(ptr))
	}
	if err == nil {
		err = ferr
	}
	return s, err
}

// NewRuntime implements boundary.Boundary.
func (e *WazeroEngine) NewRuntime(ctx context.Context) (boundary.RuntimePtr, error) {
	r, err := e.call(ctx, ExportNewRuntime)
	if err != nil {
		return 0, err
	}
	rt := boundary.RuntimePtr(api.DecodeU32(r))
	if rt.IsNull() {
		return 0, errors.AllocationFailed(errors.PhaseEngine, 0)
	}
	return rt, nil
}

// FreeRuntime implements boundary.Boundary.
func (e *WazeroEngine) FreeRuntime(ctx context.Context, rt boundary.RuntimePtr) error {
	_, err := e.call(ctx, ExportFreeRuntime, u(uint32(rt)))
	return err
}

// NewContext implements boundary.Boundary.
func (e *WazeroEngine) NewContext(ctx context.Context, rt boundary.RuntimePtr) (boundary.ContextPtr, error) {
	r, err := e.call(ctx, ExportNewContext, u(uint32(rt)))
	if err != nil {
		return 0, err
	}
	c := boundary.ContextPtr(api.DecodeU32(r))
	if c.IsNull() {
		return 0, errors.AllocationFailed(errors.PhaseEngine, 0)
	}
	return c, nil
}

// FreeContext implements boundary.Boundary.
func (e *WazeroEngine) FreeContext(ctx context.Context, c boundary.ContextPtr) error {
	_, err := e.call(ctx, ExportFreeContext, u(uint32(c)))
	return err
}

// GetUndefined implements boundary.Boundary.
func (e *WazeroEngine) GetUndefined(ctx context.Context) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportGetUndefined)
}

// GetGlobalObject implements boundary.Boundary.
func (e *WazeroEngine) GetGlobalObject(ctx context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportGetGlobalObject, u(uint32(c)))
}

// Typeof implements boundary.Boundary.
func (e *WazeroEngine) Typeof(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (string, error) {
	r, err := e.call(ctx, ExportTypeof, u(uint32(c)), u(uint32(v)))
	if err != nil {
		return "", err
	}
	return e.takeCString(ctx, c, api.DecodeU32(r), true)
}

// NewFloat64 implements boundary.Boundary.
func (e *WazeroEngine) NewFloat64(ctx context.Context, c boundary.ContextPtr, n float64) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportNewFloat64, u(uint32(c)), api.EncodeF64(n))
}

// GetFloat64 implements boundary.Boundary.
func (e *WazeroEngine) GetFloat64(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (float64, error) {
	r, err := e.call(ctx, ExportGetFloat64, u(uint32(c)), u(uint32(v)))
	if err != nil {
		return 0, err
	}
	return api.DecodeF64(r), nil
}

// NewString implements boundary.Boundary.
func (e *WazeroEngine) NewString(ctx context.Context, c boundary.ContextPtr, s string) (boundary.ValuePtr, error) {
	return e.withCString(ctx, s, func(ptr uint32) (boundary.ValuePtr, error) {
		return e.callPtr(ctx, ExportNewString, u(uint32(c)), u(ptr))
	})
}

// GetString implements boundary.Boundary.
func (e *WazeroEngine) GetString(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (string, error) {
	r, err := e.call(ctx, ExportGetString, u(uint32(c)), u(uint32(v)))
	if err != nil {
		return "", err
	}
	return e.takeCString(ctx, c, api.DecodeU32(r), false)
}

// NewObject implements boundary.Boundary.
func (e *WazeroEngine) NewObject(ctx context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportNewObject, u(uint32(c)))
}

// NewObjectProto implements boundary.Boundary.
func (e *WazeroEngine) NewObjectProto(ctx context.Context, c boundary.ContextPtr, proto boundary.ValuePtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportNewObjectProto, u(uint32(c)), u(uint32(proto)))
}

// NewFunction implements boundary.Boundary.
func (e *WazeroEngine) NewFunction(ctx context.Context, c boundary.ContextPtr, data boundary.ValuePtr, name string) (boundary.ValuePtr, error) {
	return e.withCString(ctx, name, func(ptr uint32) (boundary.ValuePtr, error) {
		return e.callPtr(ctx, ExportNewFunction, u(uint32(c)), u(uint32(data)), u(ptr))
	})
}

// NewError implements boundary.Boundary.
func (e *WazeroEngine) NewError(ctx context.Context, c boundary.ContextPtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportNewError, u(uint32(c)))
}

// GetProp implements boundary.Boundary.
func (e *WazeroEngine) GetProp(ctx context.Context, c boundary.ContextPtr, obj, key boundary.ValuePtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportGetProp, u(uint32(c)), u(uint32(obj)), u(uint32(key)))
}

// SetProp implements boundary.Boundary.
func (e *WazeroEngine) SetProp(ctx context.Context, c boundary.ContextPtr, obj, key, val boundary.ValuePtr) error {
	_, err := e.call(ctx, ExportSetProp, u(uint32(c)), u(uint32(obj)), u(uint32(key)), u(uint32(val)))
	return err
}

// DefineProp implements boundary.Boundary.
func (e *WazeroEngine) DefineProp(ctx context.Context, c boundary.ContextPtr, obj, key boundary.ValuePtr, args boundary.DefineArgs) error {
	_, err := e.call(ctx, ExportDefineProp,
		u(uint32(c)), u(uint32(obj)), u(uint32(key)),
		u(uint32(args.Value)), u(uint32(args.Get)), u(uint32(args.Set)),
		flag(args.Configurable), flag(args.Enumerable), flag(args.HasValue))
	return err
}

// Call implements boundary.Boundary.
func (e *WazeroEngine) Call(ctx context.Context, c boundary.ContextPtr, fn, this boundary.ValuePtr, argc int32, argv boundary.ArgvPtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportCall,
		u(uint32(c)), u(uint32(fn)), u(uint32(this)), api.EncodeI32(argc), u(uint32(argv)))
}

// Eval implements boundary.Boundary.
func (e *WazeroEngine) Eval(ctx context.Context, c boundary.ContextPtr, source string) (boundary.ValuePtr, error) {
	return e.withCString(ctx, source, func(ptr uint32) (boundary.ValuePtr, error) {
		return e.callPtr(ctx, ExportEval, u(uint32(c)), u(ptr))
	})
}

// ResolveException implements boundary.Boundary.
func (e *WazeroEngine) ResolveException(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportResolveException, u(uint32(c)), u(uint32(v)))
}

// Throw implements boundary.Boundary.
func (e *WazeroEngine) Throw(ctx context.Context, c boundary.ContextPtr, errVal boundary.ValuePtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportThrow, u(uint32(c)), u(uint32(errVal)))
}

// FreeValue implements boundary.Boundary.
func (e *WazeroEngine) FreeValue(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) error {
	_, err := e.call(ctx, ExportFreeValuePointer, u(uint32(c)), u(uint32(v)))
	return err
}

// DupValue implements boundary.Boundary.
func (e *WazeroEngine) DupValue(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportDupValuePointer, u(uint32(c)), u(uint32(v)))
}

// Dump implements boundary.Boundary.
func (e *WazeroEngine) Dump(ctx context.Context, c boundary.ContextPtr, v boundary.ValuePtr) (string, error) {
	r, err := e.call(ctx, ExportDump, u(uint32(c)), u(uint32(v)))
	if err != nil {
		return "", err
	}
	return e.takeCString(ctx, c, api.DecodeU32(r), false)
}

// SetHostCallback implements boundary.Boundary. The callback can be set once.
func (e *WazeroEngine) SetHostCallback(cb boundary.HostCallback) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.callback != nil {
		return errors.AlreadyExists(errors.PhaseEngine, "host callback")
	}
	if cb == nil {
		return errors.InvalidInput(errors.PhaseEngine, "nil host callback")
	}
	e.callback = cb
	return nil
}

// ArgvGetAddress implements boundary.Boundary.
func (e *WazeroEngine) ArgvGetAddress(ctx context.Context, argv boundary.ArgvPtr, i int32) (boundary.ValuePtr, error) {
	return e.callPtr(ctx, ExportArgvGetAddress, u(uint32(argv)), api.EncodeI32(i))
}
