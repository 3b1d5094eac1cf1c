package boundarytest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// value is one guest value: float64, string, bool, undefinedValue,
// nullValue, exceptionMarker or *object.
type value any

type undefinedValue struct{}

type nullValue struct{}

// exceptionMarker is what a primitive returns when it raised.
type exceptionMarker struct{}

var (
	undefined = undefinedValue{}
	null      = nullValue{}
	exception = exceptionMarker{}
)

const (
	classObject   = "Object"
	classArray    = "Array"
	classError    = "Error"
	classFunction = "Function"
)

type property struct {
	value        value
	getter       *object
	setter       *object
	accessor     bool
	enumerable   bool
	configurable bool
}

type object struct {
	props  map[string]*property
	proto  *object
	native nativeFunc
	data   value
	class  string
	name   string
	keys   []string
	host   bool
}

func newObject(class string, proto *object) *object {
	return &object{
		class: class,
		proto: proto,
		props: make(map[string]*property),
	}
}

func (o *object) callable() bool {
	return o.native != nil || o.host
}

func (o *object) isError() bool {
	return o.class == classError
}

func (o *object) own(key string) *property {
	return o.props[key]
}

func (o *object) lookup(key string) *property {
	for cur := o; cur != nil; cur = cur.proto {
		if p := cur.props[key]; p != nil {
			return p
		}
	}
	return nil
}

func (o *object) define(key string, p *property) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = p
}

// set defines an enumerable data property.
func (o *object) set(key string, v value) {
	o.define(key, &property{value: v, enumerable: true, configurable: true})
}

// setHidden defines a non-enumerable data property.
func (o *object) setHidden(key string, v value) {
	o.define(key, &property{value: v, configurable: true})
}

// dataString reads a data property along the prototype chain as a string.
func (o *object) dataString(key string) string {
	p := o.lookup(key)
	if p == nil || p.accessor {
		return ""
	}
	if _, ok := p.value.(undefinedValue); ok {
		return ""
	}
	return toString(p.value)
}

func (o *object) arrayLength() int {
	p := o.own("length")
	if p == nil {
		return 0
	}
	n, _ := p.value.(float64)
	return int(n)
}

func typeOf(v value) string {
	switch x := v.(type) {
	case undefinedValue, exceptionMarker:
		return "undefined"
	case nullValue:
		return "object"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *object:
		if x.callable() {
			return "function"
		}
		return "object"
	}
	return "undefined"
}

func toNumber(v value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case nullValue:
		return 0
	case string:
		s := strings.TrimSpace(x)
		switch s {
		case "":
			return 0
		case "Infinity", "+Infinity":
			return math.Inf(1)
		case "-Infinity":
			return math.Inf(-1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || strings.ContainsAny(s, "iInN_") {
			return math.NaN()
		}
		return f
	case *object:
		return toNumber(toString(x))
	}
	return math.NaN()
}

func toBoolean(v value) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	case *object:
		return true
	}
	return false
}

func toString(v value) string {
	switch x := v.(type) {
	case undefinedValue, exceptionMarker:
		return "undefined"
	case nullValue:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case string:
		return x
	case *object:
		switch {
		case x.isError():
			name, msg := x.dataString("name"), x.dataString("message")
			if msg == "" {
				return name
			}
			if name == "" {
				return msg
			}
			return name + ": " + msg
		case x.callable():
			return "function " + x.name + "() {\n    [native code]\n}"
		case x.class == classArray:
			parts := make([]string, x.arrayLength())
			for i := range parts {
				if p := x.own(strconv.Itoa(i)); p != nil && !p.accessor {
					switch p.value.(type) {
					case undefinedValue, nullValue:
					default:
						parts[i] = toString(p.value)
					}
				}
			}
			return strings.Join(parts, ",")
		}
		return "[object Object]"
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// 1e+21 style exponents without zero padding
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + string(sign) + exp
}

func strictEquals(a, b value) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case *object:
		y, ok := b.(*object)
		return ok && x == y
	}
	return a == b
}

func looseEquals(a, b value) bool {
	if isNullish(a) && isNullish(b) {
		return true
	}
	if isNullish(a) || isNullish(b) {
		return false
	}
	_, ao := a.(*object)
	_, bo := b.(*object)
	if ao || bo {
		return strictEquals(a, b)
	}
	if typeOf(a) == typeOf(b) {
		return strictEquals(a, b)
	}
	return toNumber(a) == toNumber(b)
}

func isNullish(v value) bool {
	switch v.(type) {
	case undefinedValue, nullValue:
		return true
	}
	return false
}

func propertyKey(v value) string {
	return toString(v)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
