package boundarytest

import (
	"context"
	"math"
	"strconv"
	"strings"
)

func (e *Engine) dump(ctx context.Context, s *contextState, v value) string {
	if o, ok := v.(*object); ok && o.isError() {
		out := `{"name":` + quote(o.dataString("name")) + `,"message":` + quote(o.dataString("message"))
		if stack := o.dataString("stack"); stack != "" {
			out += `,"stack":` + quote(stack)
		}
		return out + "}"
	}
	if text, ok := e.stringify(ctx, s, v, map[*object]bool{}); ok {
		return text
	}
	return toString(v)
}

// stringify follows JSON.stringify: ok is false for values without a JSON
// form and for cycles.
func (e *Engine) stringify(ctx context.Context, s *contextState, v value, seen map[*object]bool) (string, bool) {
	switch x := v.(type) {
	case nullValue:
		return "null", true
	case bool:
		return toString(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "null", true
		}
		return formatNumber(x), true
	case string:
		return quote(x), true
	case *object:
		if x.callable() || seen[x] {
			return "", false
		}
		seen[x] = true
		defer delete(seen, x)

		if x.class == classArray {
			parts := make([]string, x.arrayLength())
			for i := range parts {
				item, threw := e.getProp(ctx, s, x, strconv.Itoa(i))
				if threw {
					return "", false
				}
				text, ok := e.stringify(ctx, s, item, seen)
				if !ok {
					if plainObject(item) {
						return "", false
					}
					text = "null"
				}
				parts[i] = text
			}
			return "[" + strings.Join(parts, ",") + "]", true
		}

		var parts []string
		for _, key := range x.keys {
			p := x.props[key]
			if !p.enumerable {
				continue
			}
			item, threw := e.getProp(ctx, s, x, key)
			if threw {
				return "", false
			}
			text, ok := e.stringify(ctx, s, item, seen)
			if !ok {
				if plainObject(item) {
					return "", false
				}
				continue
			}
			parts = append(parts, quote(key)+":"+text)
		}
		return "{" + strings.Join(parts, ",") + "}", true
	}
	return "", false
}

func plainObject(v value) bool {
	o, ok := v.(*object)
	return ok && !o.callable()
}
