// Package engine runs a QuickJS WebAssembly reactor under wazero.
//
// WazeroEngine implements boundary.Boundary: it binds the reactor's QTS_*
// exports, exposes the single host-callback import and wraps linear memory
// and the reactor's malloc/free.
//
// # Loading
//
//	eng, err := engine.Load(ctx, wasmBytes, &engine.Config{
//	    HostModule:       engine.DefaultHostModule,
//	    HostCallbackName: engine.DefaultHostCallbackName,
//	    MemoryLimitPages: 1024, // 64MB
//	    CacheDir:         "/var/cache/jsvm",
//	})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
// The module is instantiated with WASI preview1 and its _initialize export
// runs as the start function. Every export listed in names.go must be
// present; a missing one fails Load with an errors.KindMissingExport error.
//
// # Host calls
//
// The reactor imports one function (by default env.qts_host_call_function)
// and calls it for every host function it was given through
// QTS_NewFunction. The engine forwards those calls to the callback
// installed with SetHostCallback. Host code may call back into the engine
// from inside that callback.
//
// # Strings
//
// Strings cross the boundary as NUL-terminated UTF-8. Strings passed in are
// copied into a temporary malloc block and freed after the call; strings
// returned by the reactor are copied out and released with free or
// QTS_FreeCString as the export requires.
//
// # Thread Safety
//
// WazeroEngine is NOT thread-safe and should be used by a single goroutine.
package engine
