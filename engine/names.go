package engine

// Exports a QuickJS reactor build must provide. Pointers are i32 addresses
// into linear memory; JSValue arguments and results are heap pointers that
// the host releases with QTS_FreeValuePointer.
const (
	// QTS_NewRuntime() -> rt
	ExportNewRuntime = "QTS_NewRuntime"
	// QTS_FreeRuntime(rt)
	ExportFreeRuntime = "QTS_FreeRuntime"
	// QTS_NewContext(rt) -> ctx
	ExportNewContext = "QTS_NewContext"
	// QTS_FreeContext(ctx)
	ExportFreeContext = "QTS_FreeContext"

	// QTS_GetUndefined() -> value. Static, never freed.
	ExportGetUndefined = "QTS_GetUndefined"
	// QTS_GetGlobalObject(ctx) -> value
	ExportGetGlobalObject = "QTS_GetGlobalObject"
	// QTS_Typeof(ctx, value) -> heap char*, released with free
	ExportTypeof = "QTS_Typeof"

	// QTS_NewFloat64(ctx, f64) -> value
	ExportNewFloat64 = "QTS_NewFloat64"
	// QTS_GetFloat64(ctx, value) -> f64
	ExportGetFloat64 = "QTS_GetFloat64"
	// QTS_NewString(ctx, char*) -> value
	ExportNewString = "QTS_NewString"
	// QTS_GetString(ctx, value) -> char*, released with QTS_FreeCString
	ExportGetString = "QTS_GetString"
	// QTS_FreeCString(ctx, char*)
	ExportFreeCString = "QTS_FreeCString"
	// QTS_NewObject(ctx) -> value
	ExportNewObject = "QTS_NewObject"
	// QTS_NewObjectProto(ctx, proto) -> value
	ExportNewObjectProto = "QTS_NewObjectProto"
	// QTS_NewFunction(ctx, data, char* name) -> value
	ExportNewFunction = "QTS_NewFunction"
	// QTS_NewError(ctx) -> value
	ExportNewError = "QTS_NewError"

	// QTS_GetProp(ctx, obj, key) -> value
	ExportGetProp = "QTS_GetProp"
	// QTS_SetProp(ctx, obj, key, value)
	ExportSetProp = "QTS_SetProp"
	// QTS_DefineProp(ctx, obj, key, value, get, set, configurable, enumerable, has_value)
	ExportDefineProp = "QTS_DefineProp"

	// QTS_Call(ctx, fn, this, argc, value** argv) -> value
	ExportCall = "QTS_Call"
	// QTS_Eval(ctx, char* source) -> value
	ExportEval = "QTS_Eval"
	// QTS_ResolveException(ctx, value) -> exception value or 0
	ExportResolveException = "QTS_ResolveException"
	// QTS_Throw(ctx, error) -> exception marker
	ExportThrow = "QTS_Throw"

	// QTS_FreeValuePointer(ctx, value)
	ExportFreeValuePointer = "QTS_FreeValuePointer"
	// QTS_DupValuePointer(ctx, value) -> value
	ExportDupValuePointer = "QTS_DupValuePointer"
	// QTS_Dump(ctx, value) -> char*, released with QTS_FreeCString
	ExportDump = "QTS_Dump"
	// QTS_ArgvGetJSValueConstPointer(argv, index) -> value
	ExportArgvGetAddress = "QTS_ArgvGetJSValueConstPointer"

	// malloc(size) -> ptr
	ExportMalloc = "malloc"
	// free(ptr)
	ExportFree = "free"
)

// Host import defaults. The reactor calls
// env.qts_host_call_function(ctx, this, argc, argv, data) -> value
// for every host function; a zero result means undefined.
const (
	DefaultHostModule       = "env"
	DefaultHostCallbackName = "qts_host_call_function"
)

// requiredExports lists every export bound at load time.
var requiredExports = []string{
	ExportNewRuntime,
	ExportFreeRuntime,
	ExportNewContext,
	ExportFreeContext,
	ExportGetUndefined,
	ExportGetGlobalObject,
	ExportTypeof,
	ExportNewFloat64,
	ExportGetFloat64,
	ExportNewString,
	ExportGetString,
	ExportFreeCString,
	ExportNewObject,
	ExportNewObjectProto,
	ExportNewFunction,
	ExportNewError,
	ExportGetProp,
	ExportSetProp,
	ExportDefineProp,
	ExportCall,
	ExportEval,
	ExportResolveException,
	ExportThrow,
	ExportFreeValuePointer,
	ExportDupValuePointer,
	ExportDump,
	ExportArgvGetAddress,
	ExportMalloc,
	ExportFree,
}
