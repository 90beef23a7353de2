package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Expression sandbox for workflow conditions and transforms.
//
// Evaluator is a recursive descent parser and interpreter for the small
// expression language used on conditional edges and inside transform,
// filter, and map nodes. It supports:
//
//   - Identifiers resolving against the execution context data map:
//     "price", "items[0].name", "data" (the whole map)
//   - Comparison operators: ==, !=, <, >, <=, >=
//   - Boolean operators: &&, ||, !
//   - Arithmetic operators: +, -, *, /, % (numbers; + concatenates strings)
//   - Literals: true, false, null, numbers, quoted strings
//   - Parentheses for grouping
//   - A fixed allowlist of pure builtin functions (len, str, float,
//     contains, regex_match, json_decode, ...)
//   - Array/map indexing with []
//
// Expression examples:
//
//	float(price) < 100
//	len(items) > 0 && status == "ok"
//	lower(trim(value))
//	regex_match("[0-9]+", sku)
//
// There is no attribute access onto host types, no I/O, and no way to call
// anything outside the allowlist. All failures are EngineError with code
// ErrExpressionInvalid; callers decide whether that is fatal (transform)
// or falsy (edge condition).

// EvalFunc is a builtin callable from expressions.
type EvalFunc func(args []any) (any, error)

// Evaluator parses and evaluates sandboxed expressions.
type Evaluator struct {
	functions map[string]EvalFunc
}

// NewEvaluator creates an Evaluator with the default builtin allowlist.
func NewEvaluator() *Evaluator {
	ev := &Evaluator{functions: make(map[string]EvalFunc)}
	registerBuiltins(ev)
	return ev
}

// RegisterFunction adds a builtin. Intended for tests; production callers
// use the default allowlist.
func (ev *Evaluator) RegisterFunction(name string, fn EvalFunc) {
	ev.functions[name] = fn
}

// Evaluate parses and evaluates an expression against the namespace. The
// namespace is the context data map; "data" resolves to the whole map.
func (ev *Evaluator) Evaluate(expr string, namespace map[string]any) (any, error) {
	toks, err := tokenizeExpr(expr)
	if err != nil {
		return nil, &EngineError{
			Code:    ErrExpressionInvalid,
			Message: fmt.Sprintf("failed to tokenize expression: %v", err),
			Cause:   err,
		}
	}

	p := &exprParser{tokens: toks, namespace: namespace, evaluator: ev}
	result, err := p.parseExpression()
	if err != nil {
		return nil, &EngineError{
			Code:    ErrExpressionInvalid,
			Message: fmt.Sprintf("failed to evaluate expression: %v", err),
			Cause:   err,
		}
	}
	if p.current().typ != tokEOF {
		return nil, &EngineError{
			Code:    ErrExpressionInvalid,
			Message: fmt.Sprintf("unexpected trailing input at token %q", p.current().value),
		}
	}
	return result, nil
}

// EvaluateBool evaluates the expression and applies truthiness to the
// result.
func (ev *Evaluator) EvaluateBool(expr string, namespace map[string]any) (bool, error) {
	result, err := ev.Evaluate(expr, namespace)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// truthy converts a value to its boolean interpretation: nil and zero
// values are false, everything else true.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

type exprTokenType int

const (
	tokEOF exprTokenType = iota
	tokIdentifier
	tokNumber
	tokString
	tokBool
	tokNull
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokEQ
	tokNE
	tokLT
	tokLE
	tokGT
	tokGE
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
)

type exprToken struct {
	typ   exprTokenType
	value string
}

// tokenizeExpr converts an expression string into tokens.
func tokenizeExpr(expr string) ([]exprToken, error) {
	var tokens []exprToken
	i := 0

	for i < len(expr) {
		c := expr[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		// Two-character operators first.
		if i+1 < len(expr) {
			switch expr[i : i+2] {
			case "==":
				tokens = append(tokens, exprToken{tokEQ, "=="})
				i += 2
				continue
			case "!=":
				tokens = append(tokens, exprToken{tokNE, "!="})
				i += 2
				continue
			case "<=":
				tokens = append(tokens, exprToken{tokLE, "<="})
				i += 2
				continue
			case ">=":
				tokens = append(tokens, exprToken{tokGE, ">="})
				i += 2
				continue
			case "&&":
				tokens = append(tokens, exprToken{tokAnd, "&&"})
				i += 2
				continue
			case "||":
				tokens = append(tokens, exprToken{tokOr, "||"})
				i += 2
				continue
			}
		}

		switch c {
		case '.':
			tokens = append(tokens, exprToken{tokDot, "."})
			i++
			continue
		case ',':
			tokens = append(tokens, exprToken{tokComma, ","})
			i++
			continue
		case '(':
			tokens = append(tokens, exprToken{tokLParen, "("})
			i++
			continue
		case ')':
			tokens = append(tokens, exprToken{tokRParen, ")"})
			i++
			continue
		case '[':
			tokens = append(tokens, exprToken{tokLBracket, "["})
			i++
			continue
		case ']':
			tokens = append(tokens, exprToken{tokRBracket, "]"})
			i++
			continue
		case '<':
			tokens = append(tokens, exprToken{tokLT, "<"})
			i++
			continue
		case '>':
			tokens = append(tokens, exprToken{tokGT, ">"})
			i++
			continue
		case '!':
			tokens = append(tokens, exprToken{tokNot, "!"})
			i++
			continue
		case '+':
			tokens = append(tokens, exprToken{tokPlus, "+"})
			i++
			continue
		case '-':
			tokens = append(tokens, exprToken{tokMinus, "-"})
			i++
			continue
		case '*':
			tokens = append(tokens, exprToken{tokStar, "*"})
			i++
			continue
		case '/':
			tokens = append(tokens, exprToken{tokSlash, "/"})
			i++
			continue
		case '%':
			tokens = append(tokens, exprToken{tokPercent, "%"})
			i++
			continue
		}

		// String literals.
		if c == '"' || c == '\'' {
			quote := c
			i++
			var sb strings.Builder
			for i < len(expr) && expr[i] != quote {
				if expr[i] == '\\' && i+1 < len(expr) {
					i++
					switch expr[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(expr[i])
					}
					i++
				} else {
					sb.WriteByte(expr[i])
					i++
				}
			}
			if i >= len(expr) {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, exprToken{tokString, sb.String()})
			i++ // closing quote
			continue
		}

		// Numbers.
		if c >= '0' && c <= '9' {
			start := i
			for i < len(expr) && ((expr[i] >= '0' && expr[i] <= '9') || expr[i] == '.') {
				i++
			}
			tokens = append(tokens, exprToken{tokNumber, expr[start:i]})
			continue
		}

		// Identifiers and keywords.
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			start := i
			for i < len(expr) && ((expr[i] >= 'a' && expr[i] <= 'z') ||
				(expr[i] >= 'A' && expr[i] <= 'Z') ||
				(expr[i] >= '0' && expr[i] <= '9') ||
				expr[i] == '_') {
				i++
			}
			value := expr[start:i]
			switch value {
			case "true", "false":
				tokens = append(tokens, exprToken{tokBool, value})
			case "null", "nil":
				tokens = append(tokens, exprToken{tokNull, value})
			default:
				tokens = append(tokens, exprToken{tokIdentifier, value})
			}
			continue
		}

		return nil, fmt.Errorf("unexpected character at position %d: %c", i, c)
	}

	tokens = append(tokens, exprToken{typ: tokEOF})
	return tokens, nil
}

// exprParser walks the token stream, evaluating as it parses.
type exprParser struct {
	tokens    []exprToken
	pos       int
	namespace map[string]any
	evaluator *Evaluator
}

func (p *exprParser) current() exprToken {
	if p.pos >= len(p.tokens) {
		return exprToken{typ: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *exprParser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *exprParser) expect(typ exprTokenType) error {
	if p.current().typ != typ {
		return fmt.Errorf("expected token %v, got %q", typ, p.current().value)
	}
	p.advance()
	return nil
}

// parseExpression parses the top-level expression (|| binds loosest).
func (p *exprParser) parseExpression() (any, error) {
	return p.parseOr()
}

func (p *exprParser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().typ == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current().typ == tokAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseNot() (any, error) {
	if p.current().typ == tokNot {
		p.advance()
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !truthy(expr), nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (any, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	switch tok.typ {
	case tokEQ, tokNE, tokLT, tokLE, tokGT, tokGE:
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return compareValues(left, right, tok.typ)
	}
	return left, nil
}

func (p *exprParser) parseAdditive() (any, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.typ != tokPlus && tok.typ != tokMinus {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		if tok.typ == tokPlus {
			// + concatenates strings when either side is a string.
			ls, lok := left.(string)
			rs, rok := right.(string)
			if lok && rok {
				left = ls + rs
				continue
			}
		}

		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if !lok || !rok {
			return nil, fmt.Errorf("%s operator requires numeric operands, got %T and %T", tok.value, left, right)
		}
		if tok.typ == tokPlus {
			left = ln + rn
		} else {
			left = ln - rn
		}
	}
}

func (p *exprParser) parseMultiplicative() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current()
		if tok.typ != tokStar && tok.typ != tokSlash && tok.typ != tokPercent {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		ln, lok := toNumber(left)
		rn, rok := toNumber(right)
		if !lok || !rok {
			return nil, fmt.Errorf("%s operator requires numeric operands, got %T and %T", tok.value, left, right)
		}
		switch tok.typ {
		case tokStar:
			left = ln * rn
		case tokSlash:
			if rn == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			left = ln / rn
		case tokPercent:
			if rn == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(ln, rn)
		}
	}
}

func (p *exprParser) parseUnary() (any, error) {
	if p.current().typ == tokMinus {
		p.advance()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n, ok := toNumber(expr)
		if !ok {
			return nil, fmt.Errorf("unary - requires a numeric operand, got %T", expr)
		}
		return -n, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (any, error) {
	tok := p.current()

	switch tok.typ {
	case tokBool:
		p.advance()
		return tok.value == "true", nil

	case tokNull:
		p.advance()
		return nil, nil

	case tokNumber:
		p.advance()
		return strconv.ParseFloat(tok.value, 64)

	case tokString:
		p.advance()
		return tok.value, nil

	case tokLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return p.parsePostfix(expr)

	case tokIdentifier:
		return p.parseIdentifierOrFunction()

	default:
		return nil, fmt.Errorf("unexpected token %q", tok.value)
	}
}

func (p *exprParser) parseIdentifierOrFunction() (any, error) {
	name := p.current().value
	p.advance()

	if p.current().typ == tokLParen {
		value, err := p.parseFunctionCall(name)
		if err != nil {
			return nil, err
		}
		return p.parsePostfix(value)
	}

	value, err := p.resolveIdentifier(name)
	if err != nil {
		return nil, err
	}
	return p.parsePostfix(value)
}

func (p *exprParser) parseFunctionCall(name string) (any, error) {
	fn, ok := p.evaluator.functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function: %s", name)
	}

	p.advance() // consume '('

	var args []any
	if p.current().typ != tokRParen {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current().typ != tokComma {
				break
			}
			p.advance()
		}
	}
	if err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return fn(args)
}

// resolveIdentifier looks up a bare name in the namespace. "data" binds to
// the whole map. Missing names resolve to nil so conditions can probe for
// absent keys with exists().
func (p *exprParser) resolveIdentifier(name string) (any, error) {
	if name == "data" {
		return p.namespace, nil
	}
	return p.namespace[name], nil
}

// parsePostfix applies trailing .field and [index] accesses to a value.
func (p *exprParser) parsePostfix(value any) (any, error) {
	for {
		switch p.current().typ {
		case tokDot:
			p.advance()
			if p.current().typ != tokIdentifier {
				return nil, fmt.Errorf("expected identifier after '.'")
			}
			field := p.current().value
			p.advance()

			m, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cannot access field %s on %T", field, value)
			}
			value = m[field]

		case tokLBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(tokRBracket); err != nil {
				return nil, err
			}

			switch v := value.(type) {
			case map[string]any:
				key, ok := index.(string)
				if !ok {
					return nil, fmt.Errorf("map index must be a string, got %T", index)
				}
				value = v[key]
			case []any:
				n, ok := toNumber(index)
				if !ok {
					return nil, fmt.Errorf("array index must be a number, got %T", index)
				}
				idx := int(n)
				if idx < 0 || idx >= len(v) {
					return nil, fmt.Errorf("array index out of bounds: %d", idx)
				}
				value = v[idx]
			case string:
				n, ok := toNumber(index)
				if !ok {
					return nil, fmt.Errorf("string index must be a number, got %T", index)
				}
				idx := int(n)
				if idx < 0 || idx >= len(v) {
					return nil, fmt.Errorf("string index out of bounds: %d", idx)
				}
				value = string(v[idx])
			default:
				return nil, fmt.Errorf("cannot index %T", value)
			}

		default:
			return value, nil
		}
	}
}

// compareValues applies a comparison operator.
func compareValues(left, right any, op exprTokenType) (bool, error) {
	switch op {
	case tokEQ:
		return looseEquals(left, right), nil
	case tokNE:
		return !looseEquals(left, right), nil
	}

	// Ordered comparison: numeric when both sides coerce, else string.
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	if lok && rok {
		switch op {
		case tokLT:
			return ln < rn, nil
		case tokLE:
			return ln <= rn, nil
		case tokGT:
			return ln > rn, nil
		case tokGE:
			return ln >= rn, nil
		}
	}

	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case tokLT:
			return ls < rs, nil
		case tokLE:
			return ls <= rs, nil
		case tokGT:
			return ls > rs, nil
		case tokGE:
			return ls >= rs, nil
		}
	}

	return false, fmt.Errorf("cannot compare %T and %T", left, right)
}

// looseEquals compares values, coercing numeric types so that 1 == 1.0.
func looseEquals(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	if left == nil || right == nil {
		return false
	}

	switch l := left.(type) {
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	}

	// Numeric coercion across int/float; a string never equals a number,
	// so "42" == 42 stays false.
	if _, isStr := right.(string); isStr {
		return false
	}
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	return lok && rok && ln == rn
}

// toNumber attempts to convert a value to float64. Strings parse when they
// look like numbers.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if n, err := val.Float64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// formatValue renders a value as a string the way str() and join() do.
// Integral floats print without a trailing ".0".
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// registerBuiltins installs the default allowlist of pure helpers.
func registerBuiltins(ev *Evaluator) {
	ev.RegisterFunction("len", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("len() requires exactly 1 argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case string:
			return float64(len(v)), nil
		case []any:
			return float64(len(v)), nil
		case map[string]any:
			return float64(len(v)), nil
		case nil:
			return float64(0), nil
		default:
			return nil, fmt.Errorf("len() requires string, array, or map argument")
		}
	})

	ev.RegisterFunction("empty", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("empty() requires exactly 1 argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case nil:
			return true, nil
		case string:
			return len(v) == 0, nil
		case []any:
			return len(v) == 0, nil
		case map[string]any:
			return len(v) == 0, nil
		default:
			return false, nil
		}
	})

	ev.RegisterFunction("exists", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("exists() requires exactly 1 argument, got %d", len(args))
		}
		return args[0] != nil, nil
	})

	ev.RegisterFunction("str", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("str() requires exactly 1 argument, got %d", len(args))
		}
		return formatValue(args[0]), nil
	})

	ev.RegisterFunction("int", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("int() requires exactly 1 argument, got %d", len(args))
		}
		n, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("int() cannot convert %T", args[0])
		}
		return math.Trunc(n), nil
	})

	ev.RegisterFunction("float", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("float() requires exactly 1 argument, got %d", len(args))
		}
		n, ok := toNumber(args[0])
		if !ok {
			return nil, fmt.Errorf("float() cannot convert %T", args[0])
		}
		return n, nil
	})

	ev.RegisterFunction("bool", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("bool() requires exactly 1 argument, got %d", len(args))
		}
		return truthy(args[0]), nil
	})

	ev.RegisterFunction("list", func(args []any) (any, error) {
		out := make([]any, len(args))
		copy(out, args)
		return out, nil
	})

	ev.RegisterFunction("dict", func(args []any) (any, error) {
		if len(args)%2 != 0 {
			return nil, fmt.Errorf("dict() requires an even number of arguments, got %d", len(args))
		}
		out := make(map[string]any, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			key, ok := args[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict() keys must be strings, got %T", args[i])
			}
			out[key] = args[i+1]
		}
		return out, nil
	})

	ev.RegisterFunction("keys", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("keys() requires exactly 1 argument, got %d", len(args))
		}
		m, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("keys() requires a map argument, got %T", args[0])
		}
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, k := range names {
			out[i] = k
		}
		return out, nil
	})

	ev.RegisterFunction("values", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("values() requires exactly 1 argument, got %d", len(args))
		}
		m, ok := args[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("values() requires a map argument, got %T", args[0])
		}
		names := make([]string, 0, len(m))
		for k := range m {
			names = append(names, k)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, k := range names {
			out[i] = m[k]
		}
		return out, nil
	})

	ev.RegisterFunction("contains", func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains() requires exactly 2 arguments, got %d", len(args))
		}
		switch v := args[0].(type) {
		case string:
			needle, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("contains() on a string requires a string needle")
			}
			return strings.Contains(v, needle), nil
		case []any:
			for _, item := range v {
				if looseEquals(item, args[1]) {
					return true, nil
				}
			}
			return false, nil
		case map[string]any:
			key, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("contains() on a map requires a string key")
			}
			_, found := v[key]
			return found, nil
		default:
			return nil, fmt.Errorf("contains() requires string, array, or map argument")
		}
	})

	ev.RegisterFunction("lower", stringBuiltin("lower", strings.ToLower))
	ev.RegisterFunction("upper", stringBuiltin("upper", strings.ToUpper))
	ev.RegisterFunction("trim", stringBuiltin("trim", strings.TrimSpace))

	ev.RegisterFunction("split", func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("split() requires exactly 2 arguments, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("split() requires a string argument, got %T", args[0])
		}
		sep, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("split() separator must be a string, got %T", args[1])
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	})

	ev.RegisterFunction("join", func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("join() requires exactly 2 arguments, got %d", len(args))
		}
		items, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("join() requires an array argument, got %T", args[0])
		}
		sep, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("join() separator must be a string, got %T", args[1])
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, sep), nil
	})

	ev.RegisterFunction("replace", func(args []any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("replace() requires exactly 3 arguments, got %d", len(args))
		}
		s, ok1 := args[0].(string)
		old, ok2 := args[1].(string)
		new_, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("replace() requires string arguments")
		}
		return strings.ReplaceAll(s, old, new_), nil
	})

	ev.RegisterFunction("regex_match", func(args []any) (any, error) {
		pattern, s, err := regexArgs("regex_match", args)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex_match() invalid pattern: %v", err)
		}
		return re.MatchString(s), nil
	})

	ev.RegisterFunction("regex_find", func(args []any) (any, error) {
		pattern, s, err := regexArgs("regex_find", args)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex_find() invalid pattern: %v", err)
		}
		match := re.FindString(s)
		if match == "" && !re.MatchString(s) {
			return nil, nil
		}
		return match, nil
	})

	ev.RegisterFunction("regex_find_all", func(args []any) (any, error) {
		pattern, s, err := regexArgs("regex_find_all", args)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("regex_find_all() invalid pattern: %v", err)
		}
		matches := re.FindAllString(s, -1)
		out := make([]any, len(matches))
		for i, m := range matches {
			out[i] = m
		}
		return out, nil
	})

	ev.RegisterFunction("json_encode", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("json_encode() requires exactly 1 argument, got %d", len(args))
		}
		b, err := json.Marshal(args[0])
		if err != nil {
			return nil, fmt.Errorf("json_encode() failed: %v", err)
		}
		return string(b), nil
	})

	ev.RegisterFunction("json_decode", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("json_decode() requires exactly 1 argument, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("json_decode() requires a string argument, got %T", args[0])
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("json_decode() failed: %v", err)
		}
		return v, nil
	})

	ev.RegisterFunction("min", numericAggregate("min", func(acc, n float64) float64 {
		return math.Min(acc, n)
	}))
	ev.RegisterFunction("max", numericAggregate("max", func(acc, n float64) float64 {
		return math.Max(acc, n)
	}))
	ev.RegisterFunction("sum", func(args []any) (any, error) {
		items, err := aggregateItems("sum", args)
		if err != nil {
			return nil, err
		}
		var total float64
		for _, item := range items {
			n, ok := toNumber(item)
			if !ok {
				return nil, fmt.Errorf("sum() requires numeric values, got %T", item)
			}
			total += n
		}
		return total, nil
	})

	ev.RegisterFunction("first", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("first() requires exactly 1 argument, got %d", len(args))
		}
		items, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("first() requires an array argument, got %T", args[0])
		}
		if len(items) == 0 {
			return nil, nil
		}
		return items[0], nil
	})

	ev.RegisterFunction("last", func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("last() requires exactly 1 argument, got %d", len(args))
		}
		items, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("last() requires an array argument, got %T", args[0])
		}
		if len(items) == 0 {
			return nil, nil
		}
		return items[len(items)-1], nil
	})
}

func stringBuiltin(name string, fn func(string) string) EvalFunc {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s() requires exactly 1 argument, got %d", name, len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s() requires a string argument, got %T", name, args[0])
		}
		return fn(s), nil
	}
}

func regexArgs(name string, args []any) (pattern, s string, err error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s() requires exactly 2 arguments, got %d", name, len(args))
	}
	pattern, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("%s() pattern must be a string, got %T", name, args[0])
	}
	s, ok = args[1].(string)
	if !ok {
		return "", "", fmt.Errorf("%s() subject must be a string, got %T", name, args[1])
	}
	return pattern, s, nil
}

// aggregateItems flattens min/max/sum arguments: a single array argument
// aggregates its elements, multiple scalar arguments aggregate directly.
func aggregateItems(name string, args []any) ([]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s() requires at least 1 argument", name)
	}
	if len(args) == 1 {
		if items, ok := args[0].([]any); ok {
			return items, nil
		}
	}
	return args, nil
}

func numericAggregate(name string, combine func(acc, n float64) float64) EvalFunc {
	return func(args []any) (any, error) {
		items, err := aggregateItems(name, args)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%s() of empty sequence", name)
		}
		acc, ok := toNumber(items[0])
		if !ok {
			return nil, fmt.Errorf("%s() requires numeric values, got %T", name, items[0])
		}
		for _, item := range items[1:] {
			n, nok := toNumber(item)
			if !nok {
				return nil, fmt.Errorf("%s() requires numeric values, got %T", name, item)
			}
			acc = combine(acc, n)
		}
		return acc, nil
	}
}
