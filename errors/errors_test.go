package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseHost,
				Kind:   KindTypeMismatch,
				Path:   []string{"add", "arg1"},
				GoType: "chan int",
				Detail: "unsupported parameter",
			},
			contains: []string{"[host]", "type_mismatch", "add.arg1", "chan int", "unsupported parameter"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLifetime,
				Kind:  KindDisposed,
			},
			contains: []string{"[lifetime]", "disposed"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseEngine,
				Kind:   KindEngineCall,
				Detail: "call failed",
				Cause:  errors.New("wasm trap"),
			},
			contains: []string{"[engine]", "engine_call", "call failed", "caused by", "wasm trap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := EngineCall("QTS_Eval", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through chain")
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"disposed", Disposed("handle"), ErrDisposed, true},
		{"ownership", Ownership("handle belongs to another VM"), ErrOwnership, true},
		{"manager exists", AlreadyExists(PhaseRuntime, "manager"), ErrManagerExists, true},
		{"not initialized", NotInitialized(PhaseRuntime, "boundary"), ErrNotInitialized, true},
		{"context mismatch", ContextMismatch(1, 2), ErrContextMismatch, true},
		{"callback not found", NotFound(PhaseDispatch, "callback", 7), ErrCallbackNotFound, true},
		{"kind differs", Disposed("handle"), ErrOwnership, false},
		{"phase differs", NotFound(PhaseVM, "callback", 7), ErrCallbackNotFound, false},
		{"wrapped", Wrap(PhaseVM, KindInvalidInput, Disposed("handle"), "bad key"), ErrDisposed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseHost, KindTypeMismatch).
		Path("fn", "arg0").
		GoType("map[string]int").
		Value(42).
		Detail("unsupported %s", "parameter").
		Cause(errors.New("inner")).
		Build()

	if err.Phase != PhaseHost || err.Kind != KindTypeMismatch {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if strings.Join(err.Path, ".") != "fn.arg0" {
		t.Errorf("path = %v", err.Path)
	}
	if err.GoType != "map[string]int" {
		t.Errorf("GoType = %q", err.GoType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v", err.Value)
	}
	if err.Detail != "unsupported parameter" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Cause == nil || err.Cause.Error() != "inner" {
		t.Errorf("Cause = %v", err.Cause)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
		text  string
	}{
		{"allocation", AllocationFailed(PhaseMarshal, 16), PhaseMarshal, KindAllocation, "16 bytes"},
		{"out of bounds", OutOfBounds(PhaseMarshal, 100, 4), PhaseMarshal, KindOutOfBounds, "offset 100"},
		{"missing export", MissingExport("QTS_Eval"), PhaseLoad, KindMissingExport, "QTS_Eval"},
		{"instantiation", Instantiation(errors.New("boom")), PhaseLoad, KindInstantiation, "boom"},
		{"load", Load("compile", errors.New("bad magic")), PhaseLoad, KindInvalidData, "bad magic"},
		{"invalid input", InvalidInput(PhaseVM, "bad key"), PhaseVM, KindInvalidInput, "bad key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.text) {
				t.Errorf("message %q missing %q", tt.err.Error(), tt.text)
			}
		})
	}
}
