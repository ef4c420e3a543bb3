package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	conduiterrors "conduit/internal/errors"
)

// ErrDivisionByZero is the distinct error kind for zero divisors.
var ErrDivisionByZero = errors.New("Division by zero")

// evaluator parses a restricted expression grammar and walks it. Supported:
// numeric literals, + - * / // % ** and unary sign, whitelisted functions,
// constants, variables, chained comparisons, list literals and single
// assignment. Anything else is a validation error.
//
// The Go standard parser cannot express this grammar (`//` opens a comment
// and `**` is not a Go operator), hence the hand-rolled lexer and Pratt
// parser.
type evaluator struct {
	vars map[string]any
}

func newEvaluator(vars map[string]any) *evaluator {
	return &evaluator{vars: vars}
}

// Evaluate handles `name = expr` assignment at the top level, then
// expression evaluation.
func (e *evaluator) Evaluate(input string) (any, error) {
	if name, rhs, ok := splitAssignment(input); ok {
		value, err := e.evalExpression(rhs)
		if err != nil {
			return nil, err
		}
		e.vars[name] = value
		return value, nil
	}
	return e.evalExpression(input)
}

func (e *evaluator) evalExpression(input string) (any, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, &conduiterrors.ValidationError{
			Reason: fmt.Sprintf("unexpected token %q", p.peek().text),
		}
	}
	return e.eval(node)
}

// splitAssignment detects a single `name = expr` form. `==` never matches.
func splitAssignment(input string) (string, string, bool) {
	depth := 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(input) && input[i+1] == '=' {
				return "", "", false
			}
			if i > 0 && strings.ContainsRune("<>!=+-*/%", rune(input[i-1])) {
				return "", "", false
			}
			name := strings.TrimSpace(input[:i])
			if !isIdentifier(name) {
				return "", "", false
			}
			return name, input[i+1:], true
		}
	}
	return "", "", false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' {
			continue
		}
		if i > 0 && '0' <= r && r <= '9' {
			continue
		}
		return false
	}
	return true
}

// ---- lexer ----

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.' ||
				input[i] == 'e' || input[i] == 'E' ||
				((input[i] == '+' || input[i] == '-') && i > start && (input[i-1] == 'e' || input[i-1] == 'E'))) {
				i++
			}
			text := input[start:i]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &conduiterrors.ValidationError{Reason: fmt.Sprintf("bad number %q", text)}
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: num})
		case c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
			start := i
			for i < len(input) && (input[i] == '_' ||
				'a' <= input[i] && input[i] <= 'z' ||
				'A' <= input[i] && input[i] <= 'Z' ||
				'0' <= input[i] && input[i] <= '9') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i]})
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")"})
			i++
		case c == '[':
			tokens = append(tokens, token{kind: tokLBracket, text: "["})
			i++
		case c == ']':
			tokens = append(tokens, token{kind: tokRBracket, text: "]"})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ","})
			i++
		default:
			op := matchOperator(input[i:])
			if op == "" {
				return nil, &conduiterrors.ValidationError{
					Reason: fmt.Sprintf("unsupported character %q", string(c)),
				}
			}
			tokens = append(tokens, token{kind: tokOp, text: op})
			i += len(op)
		}
	}
	return tokens, nil
}

func matchOperator(rest string) string {
	for _, op := range []string{"**", "//", "==", "!=", "<=", ">=", "+", "-", "*", "/", "%", "<", ">"} {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	return ""
}

// ---- parser ----

type node interface{}

type numberNode struct{ value float64 }
type identNode struct{ name string }
type listNode struct{ elements []node }
type unaryNode struct {
	op      string
	operand node
}
type binaryNode struct {
	op          string
	left, right node
}
type compareNode struct {
	operands []node
	ops      []string
}
type callNode struct {
	name string
	args []node
}

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) eof() bool     { return p.pos >= len(p.tokens) }
func (p *exprParser) peek() token   { return p.tokens[p.pos] }
func (p *exprParser) advance() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *exprParser) expect(kind tokenKind, text string) error {
	if p.eof() || p.peek().kind != kind {
		return &conduiterrors.ValidationError{Reason: fmt.Sprintf("expected %q", text)}
	}
	p.advance()
	return nil
}

func isCompareOp(t token) bool {
	if t.kind != tokOp {
		return false
	}
	switch t.text {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// parseComparison collects chained comparisons: a < b <= c.
func (p *exprParser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.eof() || !isCompareOp(p.peek()) {
		return left, nil
	}
	cmp := &compareNode{operands: []node{left}}
	for !p.eof() && isCompareOp(p.peek()) {
		cmp.ops = append(cmp.ops, p.advance().text)
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		cmp.operands = append(cmp.operands, operand)
	}
	return cmp, nil
}

func (p *exprParser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp && (p.peek().text == "+" || p.peek().text == "-") {
		op := p.advance().text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokOp {
		op := p.peek().text
		if op != "*" && op != "/" && op != "//" && op != "%" {
			break
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (node, error) {
	if !p.eof() && p.peek().kind == tokOp && (p.peek().text == "-" || p.peek().text == "+") {
		op := p.advance().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePower()
}

// parsePower is right-associative: 2**3**2 == 2**(3**2).
func (p *exprParser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.eof() && p.peek().kind == tokOp && p.peek().text == "**" {
		p.advance()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", left: base, right: exponent}, nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (node, error) {
	if p.eof() {
		return nil, &conduiterrors.ValidationError{Reason: "unexpected end of expression"}
	}
	t := p.advance()
	switch t.kind {
	case tokNumber:
		return &numberNode{value: t.num}, nil
	case tokIdent:
		if !p.eof() && p.peek().kind == tokLParen {
			p.advance()
			var args []node
			for p.eof() || p.peek().kind != tokRParen {
				arg, err := p.parseComparison()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.eof() && p.peek().kind == tokComma {
					p.advance()
					continue
				}
				break
			}
			if err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			return &callNode{name: t.text, args: args}, nil
		}
		return &identNode{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokLBracket:
		var elements []node
		for p.eof() || p.peek().kind != tokRBracket {
			el, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if !p.eof() && p.peek().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
		if err := p.expect(tokRBracket, "]"); err != nil {
			return nil, err
		}
		return &listNode{elements: elements}, nil
	}
	return nil, &conduiterrors.ValidationError{Reason: fmt.Sprintf("unexpected token %q", t.text)}
}

// ---- evaluation ----

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
	"inf": math.Inf(1),
	"nan": math.NaN(),
}

func (e *evaluator) eval(n node) (any, error) {
	switch v := n.(type) {
	case *numberNode:
		return v.value, nil
	case *identNode:
		if c, ok := constants[v.name]; ok {
			return c, nil
		}
		if value, ok := e.vars[v.name]; ok {
			return value, nil
		}
		return nil, fmt.Errorf("undefined variable: %s", v.name)
	case *listNode:
		out := make([]any, 0, len(v.elements))
		for _, el := range v.elements {
			val, err := e.eval(el)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *unaryNode:
		val, err := e.evalNumber(v.operand)
		if err != nil {
			return nil, err
		}
		if v.op == "-" {
			return -val, nil
		}
		return val, nil
	case *binaryNode:
		return e.evalBinary(v)
	case *compareNode:
		return e.evalCompare(v)
	case *callNode:
		return e.evalCall(v)
	}
	return nil, &conduiterrors.ValidationError{Reason: "unsupported expression"}
}

func (e *evaluator) evalNumber(n node) (float64, error) {
	val, err := e.eval(n)
	if err != nil {
		return 0, err
	}
	f, ok := val.(float64)
	if !ok {
		return 0, &conduiterrors.ValidationError{Reason: fmt.Sprintf("expected number, got %T", val)}
	}
	return f, nil
}

func (e *evaluator) evalBinary(n *binaryNode) (any, error) {
	left, err := e.evalNumber(n.left)
	if err != nil {
		return nil, err
	}
	right, err := e.evalNumber(n.right)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "+":
		return left + right, nil
	case "-":
		return left - right, nil
	case "*":
		return left * right, nil
	case "/":
		if right == 0 {
			return nil, ErrDivisionByZero
		}
		return left / right, nil
	case "//":
		if right == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Floor(left / right), nil
	case "%":
		if right == 0 {
			return nil, ErrDivisionByZero
		}
		m := math.Mod(left, right)
		// Python-style sign semantics.
		if m != 0 && (m < 0) != (right < 0) {
			m += right
		}
		return m, nil
	case "**":
		return math.Pow(left, right), nil
	}
	return nil, &conduiterrors.ValidationError{Reason: fmt.Sprintf("unsupported operator %q", n.op)}
}

func (e *evaluator) evalCompare(n *compareNode) (any, error) {
	values := make([]float64, len(n.operands))
	for i, operand := range n.operands {
		v, err := e.evalNumber(operand)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	for i, op := range n.ops {
		a, b := values[i], values[i+1]
		ok := false
		switch op {
		case "==":
			ok = a == b
		case "!=":
			ok = a != b
		case "<":
			ok = a < b
		case "<=":
			ok = a <= b
		case ">":
			ok = a > b
		case ">=":
			ok = a >= b
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// formatValue renders results: integral floats as integers, other floats to
// 10 significant digits, booleans lowercased.
func formatValue(v any) string {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if math.IsInf(val, 1) {
			return "inf"
		}
		if math.IsInf(val, -1) {
			return "-inf"
		}
		if math.IsNaN(val) {
			return "nan"
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatFloat(val, 'f', 0, 64)
		}
		return strconv.FormatFloat(val, 'g', 10, 64)
	case []any:
		parts := make([]string, len(val))
		for i, el := range val {
			parts[i] = formatValue(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
