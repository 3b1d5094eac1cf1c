// Package jsvm hosts a QuickJS interpreter compiled to WebAssembly and makes
// its manually managed value heap safe to use from Go.
//
// The interpreter is an external engine reached only through a flat
// procedural boundary that speaks in addresses. This module layers a handle
// model and a call bridge on top of it so that every engine value has exactly
// one owner, is released exactly once, and never leaks into a VM that did not
// produce it.
//
// # Architecture Overview
//
//	jsvm/                Root package with the linear Memory interface
//	├── lifetime/        Dispose-once wrapper for externally owned values
//	├── boundary/        Engine Boundary contract (addresses, primitives, trampoline)
//	│   └── boundarytest/  In-memory reference engine for tests
//	├── engine/          wazero transport for a QuickJS wasm reactor
//	├── runtime/         Manager, VM handle facade and the call bridge
//	├── resource/        Monotonic ID tables backing callback registries
//	├── errors/          Structured error types
//	└── cmd/run/         Script runner and interactive REPL
//
// # Quick Start
//
//	eng, err := engine.Load(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	mgr, err := runtime.NewManager(eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	vm, err := mgr.NewVM(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vm.Dispose()
//
//	res, err := vm.EvalCode(ctx, "1 + 1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h, err := vm.UnwrapResult(ctx, res)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Dispose()
//	n := vm.GetNumber(ctx, h) // 2
//
// # Handles
//
// Every value the engine hands back is wrapped in a *runtime.Handle. A handle
// must be disposed exactly once; reading it afterwards fails. Handles created
// by one VM are rejected by every other VM. Nothing is finalized implicitly:
// a handle that is never disposed leaks its engine value.
//
// # Host Functions
//
// Go functions become callable JavaScript values through VM.NewFunction.
// Arguments arrive as borrowed handles that are valid only for the duration
// of the call. Returning a Go error throws it into the guest as an Error
// object; guest exceptions come back from CallFunction and EvalCode as
// Result.Error and can be converted into Go errors with UnwrapResult.
//
// # Thread Safety
//
// A VM is single threaded. Calls from the guest into Go and from Go back into
// the guest nest on the same goroutine. Sharing a VM or its handles across
// goroutines is not supported.
package jsvm
