// Package runtime provides the handle-safe API over a JavaScript engine.
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
//	v, err := vm.UnwrapResult(ctx, res)
//	if err != nil {
//	    log.Fatal(err) // *runtime.HostError when the script threw
//	}
//	defer v.Dispose()
//	n, _ := vm.Dump(ctx, v) // float64(2)
//
// # Handles
//
// Every engine value is reached through a *Handle. Handles returned by VM
// methods are owned by the caller and must be disposed exactly once; a
// second Dispose, or any use after Dispose, fails with errors.ErrDisposed.
// Handles are bound to the VM that created them: passing one to another VM
// fails with errors.ErrOwnership. Nothing is finalized implicitly.
//
// # Host Functions
//
// A HostFunction receives borrowed handles for this and its arguments that
// die when it returns:
//
//	fn, err := vm.NewFunction(ctx, "double", func(ctx context.Context, this *runtime.Handle, args []*runtime.Handle) (*runtime.Handle, error) {
//	    return vm.NewNumber(ctx, vm.GetNumber(ctx, args[0])*2)
//	})
//
// Typed Go functions can be adapted with WrapFunc or registered directly:
//
//	vm.RegisterFunc(ctx, "greet", func(name string) string {
//	    return "Hello, " + name
//	})
//
// A returned error becomes a JavaScript exception. *HostError keeps its
// name and message; Throw rethrows an existing engine value.
//
// # Manager
//
// The engine has a single host-callback slot, so only one Manager may be
// open per process. It routes every callback to the VM owning the calling
// context. Routing failures are logged and never reach the engine.
//
// # Thread Safety
//
// A VM and its handles must be used from one goroutine.
package runtime
