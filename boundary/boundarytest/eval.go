package boundarytest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	text string
	num  float64
	kind tokenKind
}

var punctuators = []string{
	"===", "!==", "==", "!=", "<=", ">=",
	"(", ")", "{", "}", "[", "]", ".", ",", ";", ":",
	"+", "-", "*", "/", "%", "=", "!", "<", ">",
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i
			for j < len(src) && (isDigit(src[j]) || src[j] == '.' || src[j] == 'e' || src[j] == 'E' ||
				(src[j] == '+' || src[j] == '-') && (src[j-1] == 'e' || src[j-1] == 'E')) {
				j++
			}
			n, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", src[i:j])
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], num: n})
			i = j
		case c == '"' || c == '\'':
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: s})
			i += n
		case isIdentStart(rune(c)):
			j := i
			for j < len(src) && (isIdentStart(rune(src[j])) || isDigit(src[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j]})
			i = j
		default:
			matched := false
			for _, p := range punctuators {
				if strings.HasPrefix(src[i:], p) {
					toks = append(toks, token{kind: tokPunct, text: p})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q", c)
			}
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

func lexString(src string) (string, int, error) {
	quoteChar := src[0]
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == quoteChar:
			return b.String(), i + 1, nil
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(src[i])
			}
		case c == '\n':
			return "", 0, fmt.Errorf("unterminated string literal")
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

// Syntax tree.
type (
	node interface{}

	literal struct{ v value }
	ident   struct{ name string }
	member  struct {
		obj node
		key node
	}
	call struct {
		fn   node
		args []node
	}
	construct struct {
		ctor node
		args []node
	}
	binaryExpr struct {
		l, r node
		op   string
	}
	unary struct {
		x  node
		op string
	}
	assign struct {
		target node
		v      node
	}
	objectLit struct {
		keys []string
		vals []node
	}
	arrayLit  struct{ elems []node }
	throwStmt struct{ x node }
	declStmt  struct {
		v    node
		name string
	}
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) is(text string) bool {
	t := p.peek()
	return (t.kind == tokPunct || t.kind == tokIdent) && t.text == text
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return fmt.Errorf("expected %q, got %q", text, p.peek().text)
	}
	return nil
}

func (p *parser) program() ([]node, error) {
	var stmts []node
	for p.peek().kind != tokEOF {
		if p.accept(";") {
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func (p *parser) statement() (node, error) {
	switch {
	case p.accept("throw"):
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		return throwStmt{x: x}, nil
	case p.is("let") || p.is("const") || p.is("var"):
		p.next()
		name := p.next()
		if name.kind != tokIdent {
			return nil, fmt.Errorf("expected identifier, got %q", name.text)
		}
		var v node = literal{v: undefined}
		if p.accept("=") {
			var err error
			if v, err = p.expression(); err != nil {
				return nil, err
			}
		}
		return declStmt{name: name.text, v: v}, nil
	}
	return p.expression()
}

func (p *parser) expression() (node, error) {
	lhs, err := p.equality()
	if err != nil {
		return nil, err
	}
	if !p.accept("=") {
		return lhs, nil
	}
	switch lhs.(type) {
	case ident, member:
	default:
		return nil, fmt.Errorf("invalid assignment target")
	}
	rhs, err := p.expression()
	if err != nil {
		return nil, err
	}
	return assign{target: lhs, v: rhs}, nil
}

func (p *parser) equality() (node, error) {
	return p.binaryLevel([]string{"===", "!==", "==", "!="}, p.relational)
}

func (p *parser) relational() (node, error) {
	return p.binaryLevel([]string{"<=", ">=", "<", ">"}, p.additive)
}

func (p *parser) additive() (node, error) {
	return p.binaryLevel([]string{"+", "-"}, p.multiplicative)
}

func (p *parser) multiplicative() (node, error) {
	return p.binaryLevel([]string{"*", "/", "%"}, p.unary)
}

func (p *parser) binaryLevel(ops []string, operand func() (node, error)) (node, error) {
	l, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op := ""
		for _, o := range ops {
			if p.peek().kind == tokPunct && p.peek().text == o {
				op = o
				break
			}
		}
		if op == "" {
			return l, nil
		}
		p.next()
		r, err := operand()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: op, l: l, r: r}
	}
}

func (p *parser) unary() (node, error) {
	for _, op := range []string{"-", "+", "!", "typeof"} {
		if p.accept(op) {
			x, err := p.unary()
			if err != nil {
				return nil, err
			}
			return unary{op: op, x: x}, nil
		}
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	var (
		x   node
		err error
	)
	if p.accept("new") {
		if x, err = p.newTarget(); err != nil {
			return nil, err
		}
		var args []node
		if p.is("(") {
			if args, err = p.arguments(); err != nil {
				return nil, err
			}
		}
		x = construct{ctor: x, args: args}
	} else if x, err = p.primary(); err != nil {
		return nil, err
	}

	for {
		switch {
		case p.accept("."):
			name := p.next()
			if name.kind != tokIdent {
				return nil, fmt.Errorf("expected property name, got %q", name.text)
			}
			x = member{obj: x, key: literal{v: name.text}}
		case p.accept("["):
			key, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = member{obj: x, key: key}
		case p.is("("):
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			x = call{fn: x, args: args}
		default:
			return x, nil
		}
	}
}

// newTarget parses the callee of a new expression, which stops before the
// argument list.
func (p *parser) newTarget() (node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.accept(".") {
		name := p.next()
		if name.kind != tokIdent {
			return nil, fmt.Errorf("expected property name, got %q", name.text)
		}
		x = member{obj: x, key: literal{v: name.text}}
	}
	return x, nil
}

func (p *parser) arguments() ([]node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []node
	for !p.accept(")") {
		if len(args) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.accept(")") {
				break
			}
		}
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return args, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literal{v: t.num}, nil
	case tokString:
		return literal{v: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literal{v: true}, nil
		case "false":
			return literal{v: false}, nil
		case "null":
			return literal{v: null}, nil
		case "undefined":
			return literal{v: undefined}, nil
		case "NaN":
			return literal{v: math.NaN()}, nil
		case "Infinity":
			return literal{v: math.Inf(1)}, nil
		}
		return ident{name: t.text}, nil
	case tokPunct:
		switch t.text {
		case "(":
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			return x, p.expect(")")
		case "{":
			return p.objectLiteral()
		case "[":
			return p.arrayLiteral()
		}
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of input")
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}

func (p *parser) objectLiteral() (node, error) {
	var lit objectLit
	for !p.accept("}") {
		if len(lit.keys) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.accept("}") {
				break
			}
		}
		k := p.next()
		switch k.kind {
		case tokIdent, tokString, tokNumber:
		default:
			return nil, fmt.Errorf("unexpected token %q in object literal", k.text)
		}
		key := k.text
		if k.kind == tokNumber {
			key = formatNumber(k.num)
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		lit.keys = append(lit.keys, key)
		lit.vals = append(lit.vals, v)
	}
	return lit, nil
}

func (p *parser) arrayLiteral() (node, error) {
	var lit arrayLit
	for !p.accept("]") {
		if len(lit.elems) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
			if p.accept("]") {
				break
			}
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		lit.elems = append(lit.elems, v)
	}
	return lit, nil
}

// interp walks the syntax tree. Every step returns (value, threw); once a
// step threw the pending exception is set on the context.
type interp struct {
	ctx context.Context
	e   *Engine
	s   *contextState
}

func (e *Engine) evaluate(ctx context.Context, s *contextState, source string) (value, bool) {
	toks, err := lex(source)
	if err != nil {
		return e.throwError(s, "SyntaxError", err.Error())
	}
	p := &parser{toks: toks}
	prog, err := p.program()
	if err != nil {
		return e.throwError(s, "SyntaxError", err.Error())
	}

	in := &interp{ctx: ctx, e: e, s: s}
	var last value = undefined
	for _, st := range prog {
		v, threw := in.eval(st)
		if threw {
			return nil, true
		}
		switch st.(type) {
		case declStmt:
		default:
			last = v
		}
	}
	return last, false
}

func (in *interp) eval(n node) (value, bool) {
	switch x := n.(type) {
	case literal:
		return x.v, false

	case ident:
		p := in.s.global.lookup(x.name)
		if p == nil {
			return in.e.throwError(in.s, "ReferenceError", x.name+" is not defined")
		}
		return in.e.getProp(in.ctx, in.s, in.s.global, x.name)

	case member:
		obj, key, threw := in.pair(x.obj, x.key)
		if threw {
			return nil, true
		}
		return in.e.getProp(in.ctx, in.s, obj, propertyKey(key))

	case call:
		var this value = undefined
		var fn value
		if m, ok := x.fn.(member); ok {
			obj, key, threw := in.pair(m.obj, m.key)
			if threw {
				return nil, true
			}
			if fn, threw = in.e.getProp(in.ctx, in.s, obj, propertyKey(key)); threw {
				return nil, true
			}
			this = obj
		} else {
			var threw bool
			if fn, threw = in.eval(x.fn); threw {
				return nil, true
			}
		}
		args, threw := in.list(x.args)
		if threw {
			return nil, true
		}
		if o, ok := fn.(*object); !ok || !o.callable() {
			return in.e.throwError(in.s, "TypeError", describe(x.fn)+" is not a function")
		}
		return in.e.invoke(in.ctx, in.s, fn, this, args, false)

	case construct:
		ctor, threw := in.eval(x.ctor)
		if threw {
			return nil, true
		}
		args, threw := in.list(x.args)
		if threw {
			return nil, true
		}
		if o, ok := ctor.(*object); !ok || !o.callable() {
			return in.e.throwError(in.s, "TypeError", describe(x.ctor)+" is not a constructor")
		}
		return in.e.invoke(in.ctx, in.s, ctor, undefined, args, true)

	case unary:
		if x.op == "typeof" {
			if id, ok := x.x.(ident); ok && in.s.global.lookup(id.name) == nil {
				return "undefined", false
			}
		}
		v, threw := in.eval(x.x)
		if threw {
			return nil, true
		}
		switch x.op {
		case "-":
			return -toNumber(v), false
		case "+":
			return toNumber(v), false
		case "!":
			return !toBoolean(v), false
		}
		return typeOf(v), false

	case binaryExpr:
		l, r, threw := in.pair(x.l, x.r)
		if threw {
			return nil, true
		}
		return arithmetic(x.op, l, r), false

	case assign:
		v, threw := in.eval(x.v)
		if threw {
			return nil, true
		}
		switch t := x.target.(type) {
		case ident:
			if in.e.setProp(in.ctx, in.s, in.s.global, t.name, v) {
				return nil, true
			}
		case member:
			obj, key, threw := in.pair(t.obj, t.key)
			if threw {
				return nil, true
			}
			if in.e.setProp(in.ctx, in.s, obj, propertyKey(key), v) {
				return nil, true
			}
		}
		return v, false

	case objectLit:
		o := newObject(classObject, in.s.objectProto)
		for i, k := range x.keys {
			v, threw := in.eval(x.vals[i])
			if threw {
				return nil, true
			}
			o.set(k, v)
		}
		return o, false

	case arrayLit:
		o := newObject(classArray, in.s.objectProto)
		for i, el := range x.elems {
			v, threw := in.eval(el)
			if threw {
				return nil, true
			}
			o.set(strconv.Itoa(i), v)
		}
		o.setHidden("length", float64(len(x.elems)))
		return o, false

	case throwStmt:
		v, threw := in.eval(x.x)
		if threw {
			return nil, true
		}
		in.s.pending = v
		return nil, true

	case declStmt:
		v, threw := in.eval(x.v)
		if threw {
			return nil, true
		}
		in.s.global.set(x.name, v)
		return undefined, false
	}
	return in.e.throwError(in.s, "InternalError", fmt.Sprintf("unsupported node %T", n))
}

func (in *interp) pair(a, b node) (value, value, bool) {
	av, threw := in.eval(a)
	if threw {
		return nil, nil, true
	}
	bv, threw := in.eval(b)
	if threw {
		return nil, nil, true
	}
	return av, bv, false
}

func (in *interp) list(nodes []node) ([]value, bool) {
	out := make([]value, len(nodes))
	for i, n := range nodes {
		v, threw := in.eval(n)
		if threw {
			return nil, true
		}
		out[i] = v
	}
	return out, false
}

func arithmetic(op string, l, r value) value {
	switch op {
	case "+":
		ls, lstr := primitive(l).(string)
		rs, rstr := primitive(r).(string)
		if lstr || rstr {
			if !lstr {
				ls = toString(l)
			}
			if !rstr {
				rs = toString(r)
			}
			return ls + rs
		}
		return toNumber(l) + toNumber(r)
	case "-":
		return toNumber(l) - toNumber(r)
	case "*":
		return toNumber(l) * toNumber(r)
	case "/":
		return toNumber(l) / toNumber(r)
	case "%":
		return math.Mod(toNumber(l), toNumber(r))
	case "===":
		return strictEquals(l, r)
	case "!==":
		return !strictEquals(l, r)
	case "==":
		return looseEquals(l, r)
	case "!=":
		return !looseEquals(l, r)
	}

	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			switch op {
			case "<":
				return ls < rs
			case ">":
				return ls > rs
			case "<=":
				return ls <= rs
			case ">=":
				return ls >= rs
			}
		}
	}
	a, b := toNumber(l), toNumber(r)
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return undefined
}

// primitive converts objects to their string form for the + operator.
func primitive(v value) value {
	if o, ok := v.(*object); ok {
		return toString(o)
	}
	return v
}

func describe(n node) string {
	switch x := n.(type) {
	case ident:
		return x.name
	case member:
		if k, ok := x.key.(literal); ok {
			return describe(x.obj) + "." + toString(k.v)
		}
		return describe(x.obj) + "[...]"
	}
	return "expression"
}
