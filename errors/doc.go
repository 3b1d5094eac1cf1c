// Package errors provides structured error types for the jsvm module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes context such as the export or property path, the
// offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseHost, errors.KindTypeMismatch).
//		Path("add", "arg0").
//		GoType("chan int").
//		Detail("unsupported parameter type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Disposed("handle")
//	err := errors.EngineCall("QTS_Eval", cause)
//
// Misuse of the handle model is reported through sentinels that work with
// errors.Is, which compares Phase and Kind:
//
//	if errors.Is(err, jserrors.ErrDisposed) { ... }
//	if errors.Is(err, jserrors.ErrOwnership) { ... }
package errors
