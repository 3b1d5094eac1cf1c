package boundarytest

import "context"

// nativeFunc implements a builtin. construct is set for new calls.
type nativeFunc func(ctx context.Context, s *contextState, this value, args []value, construct bool) (value, bool)

func (e *Engine) installGlobals(s *contextState) {
	s.objectProto = newObject(classObject, nil)
	s.global = newObject(classObject, s.objectProto)
	s.global.setHidden("globalThis", s.global)

	base := e.installErrorType(s, "Error", s.objectProto)
	for _, name := range []string{"TypeError", "RangeError", "ReferenceError", "SyntaxError", "InternalError"} {
		e.installErrorType(s, name, base)
	}

	ctor := newObject(classFunction, s.objectProto)
	ctor.name = "Object"
	ctor.native = func(_ context.Context, s *contextState, _ value, args []value, _ bool) (value, bool) {
		if len(args) > 0 {
			if o, ok := args[0].(*object); ok {
				return o, false
			}
		}
		return newObject(classObject, s.objectProto), false
	}
	ctor.setHidden("prototype", s.objectProto)
	s.objectProto.setHidden("constructor", ctor)
	s.global.setHidden("Object", ctor)
}

func (e *Engine) installErrorType(s *contextState, name string, parent *object) *object {
	proto := newObject(classObject, parent)
	proto.setHidden("name", name)
	proto.setHidden("message", "")

	ctor := newObject(classFunction, s.objectProto)
	ctor.name = name
	ctor.native = func(_ context.Context, _ *contextState, _ value, args []value, _ bool) (value, bool) {
		o := newObject(classError, proto)
		if len(args) > 0 {
			if _, ok := args[0].(undefinedValue); !ok {
				o.setHidden("message", toString(args[0]))
			}
		}
		return o, false
	}
	ctor.setHidden("prototype", proto)
	proto.setHidden("constructor", ctor)
	s.global.setHidden(name, ctor)
	s.errorProtos[name] = proto
	return proto
}
