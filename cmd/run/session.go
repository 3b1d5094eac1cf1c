package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jsvm/boundary"
	"github.com/wippyai/jsvm/runtime"
)

// session is one VM with a console object writing to out.
type session struct {
	mgr *runtime.Manager
	vm  *runtime.VM
	out io.Writer
}

func newSession(ctx context.Context, b boundary.Boundary, out io.Writer, log *zap.Logger) (*session, error) {
	mgr, err := runtime.NewManager(b, runtime.WithLogger(log))
	if err != nil {
		return nil, err
	}
	vm, err := mgr.NewVM(ctx)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	s := &session{mgr: mgr, vm: vm, out: out}
	if err := s.installConsole(ctx); err != nil {
		_ = mgr.Close()
		return nil, fmt.Errorf("install console: %w", err)
	}
	return s, nil
}

func (s *session) installConsole(ctx context.Context) error {
	console, err := s.vm.NewObject(ctx, nil)
	if err != nil {
		return err
	}
	defer console.Dispose()

	for _, name := range []string{"log", "info", "warn", "error"} {
		fn, err := s.vm.NewFunction(ctx, name, s.consoleLog)
		if err != nil {
			return err
		}
		err = s.vm.SetProp(ctx, console, name, fn)
		_ = fn.Dispose()
		if err != nil {
			return err
		}
	}

	global, err := s.vm.Global(ctx)
	if err != nil {
		return err
	}
	return s.vm.SetProp(ctx, global, "console", console)
}

func (s *session) consoleLog(ctx context.Context, _ *runtime.Handle, args []*runtime.Handle) (*runtime.Handle, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		v, err := s.vm.Dump(ctx, a)
		if err != nil {
			return nil, err
		}
		if str, ok := v.(string); ok {
			parts[i] = str
			continue
		}
		parts[i] = formatValue(v)
	}
	_, err := fmt.Fprintln(s.out, strings.Join(parts, " "))
	return nil, err
}

// eval runs source and formats its completion value.
func (s *session) eval(ctx context.Context, source string) (string, error) {
	res, err := s.vm.EvalCode(ctx, source)
	if err != nil {
		return "", err
	}
	v, err := s.vm.UnwrapResult(ctx, res)
	if err != nil {
		return "", err
	}
	defer v.Dispose()

	d, err := s.vm.Dump(ctx, v)
	if err != nil {
		return "", err
	}
	return formatValue(d), nil
}

func (s *session) close() error {
	return s.mgr.Close()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}
