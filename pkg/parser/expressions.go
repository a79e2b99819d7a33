// expressions.go parses C constant expressions into the canonical tree.
// The same parser normalizes macro bodies, enumerator values, bitfield
// widths, and array sizes, so all four render identically on the way out.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raymyers/cbind/pkg/cpp"
	"github.com/raymyers/cbind/pkg/expr"
)

// ParseMacroExpression normalizes a macro replacement list into an
// expression tree. Bodies that are not expressions (statements, type
// names, token pastes) return an error; the caller records it on the
// macro entry rather than dropping the macro.
func ParseMacroExpression(tokens []cpp.Token) (expr.Node, error) {
	p := New(tokens, NewTagCounter())
	if p.atEOF() {
		return nil, fmt.Errorf("empty macro body")
	}
	n, err := p.parseConstantExpression()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, fmt.Errorf("line %d: unexpected %q after expression",
			p.cur().Loc.Line, p.cur().Text)
	}
	return n, nil
}

// parseConstantExpression parses a conditional expression. Assignment and
// comma operators are not constant expressions and are rejected by the
// caller's terminator checks.
func (p *Parser) parseConstantExpression() (expr.Node, error) {
	return p.parseConditional()
}

func (p *Parser) parseConditional() (expr.Node, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.isPunct("?") {
		return cond, nil
	}
	p.next()
	then, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	els, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	return &expr.Conditional{Cond: cond, Then: then, Else: els}, nil
}

// binOp describes one infix operator for precedence climbing.
type binOp struct {
	prec   int
	name   string
	format string
}

var binOps = map[string]binOp{
	"*":  {10, "multiplication", "(%s * %s)"},
	"/":  {10, "division", "(%s / %s)"},
	"%":  {10, "modulo", "(%s %% %s)"},
	"+":  {9, "addition", "(%s + %s)"},
	"-":  {9, "subtraction", "(%s - %s)"},
	"<<": {8, "shift-left", "(%s << %s)"},
	">>": {8, "shift-right", "(%s >> %s)"},
	"<":  {7, "less-than", "(%s < %s)"},
	">":  {7, "greater-than", "(%s > %s)"},
	"<=": {7, "less-or-equal", "(%s <= %s)"},
	">=": {7, "greater-or-equal", "(%s >= %s)"},
	"==": {6, "equals", "(%s == %s)"},
	"!=": {6, "not-equals", "(%s != %s)"},
	"&":  {5, "bitwise-and", "(%s & %s)"},
	"^":  {4, "bitwise-xor", "(%s ^ %s)"},
	"|":  {3, "bitwise-or", "(%s | %s)"},
	"&&": {2, "logical-and", "(%s && %s)"},
	"||": {1, "logical-or", "(%s || %s)"},
}

func (p *Parser) parseBinary(minPrec int) (expr.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		if tok.Kind != cpp.KindPunct {
			return left, nil
		}
		op, ok := binOps[tok.Text]
		if !ok || op.prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(op.prec + 1)
		if err != nil {
			return nil, err
		}
		left = &expr.Binary{Name: op.name, Format: op.format, Left: left, Right: right}
	}
}

var unaryOps = map[string]struct {
	name   string
	format string
}{
	"-": {"negation", "(-%s)"},
	"+": {"plus", "(+%s)"},
	"~": {"complement", "(~%s)"},
	"!": {"logical-not", "(!%s)"},
}

func (p *Parser) parseUnary() (expr.Node, error) {
	tok := p.cur()
	if tok.Kind == cpp.KindPunct {
		if op, ok := unaryOps[tok.Text]; ok {
			p.next()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &expr.Unary{Name: op.name, Format: op.format, Operand: operand}, nil
		}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (expr.Node, error) {
	node, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	// Adjacent string-ish atoms concatenate: C pastes adjacent string
	// literals, and a stringified parameter counts as one once expanded.
	for p.isStringish() {
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		node = &expr.Binary{Name: "concatenate", Format: "(%s + %s)", Left: node, Right: right}
	}
	return node, nil
}

func (p *Parser) isStringish() bool {
	tok := p.cur()
	if tok.Kind == cpp.KindString {
		return true
	}
	return p.isPunct("#") && p.peek().Kind == cpp.KindIdent
}

func (p *Parser) parseAtom() (expr.Node, error) {
	tok := p.cur()
	if p.isPunct("#") {
		// Stringification of a macro parameter. Normalizes to the
		// parameter itself; the adjacency loop above handles pasting.
		p.next()
		if p.cur().Kind != cpp.KindIdent {
			return nil, fmt.Errorf("line %d: expected identifier after #", tok.Loc.Line)
		}
		return &expr.Identifier{Name: p.next().Text}, nil
	}
	switch tok.Kind {
	case cpp.KindNumber:
		p.next()
		return parseNumber(tok.Text, tok.Loc.Line)
	case cpp.KindChar:
		p.next()
		return parseCharConstant(tok.Text, tok.Loc.Line)
	case cpp.KindString:
		p.next()
		return &expr.StringLiteral{Value: unquoteString(tok.Text)}, nil
	case cpp.KindHashHash:
		return nil, fmt.Errorf("line %d: token pasting is not a constant expression", tok.Loc.Line)
	case cpp.KindIdent:
		if tok.Text == "sizeof" {
			return nil, fmt.Errorf("line %d: sizeof is not supported in constant expressions", tok.Loc.Line)
		}
		if isKeyword(tok.Text) {
			return nil, fmt.Errorf("line %d: unexpected keyword %q in expression", tok.Loc.Line, tok.Text)
		}
		p.next()
		if p.isPunct("(") {
			return p.parseCall(tok.Text)
		}
		return &expr.Identifier{Name: tok.Text}, nil
	case cpp.KindPunct:
		if tok.Text == "(" {
			p.next()
			inner, err := p.parseConstantExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("line %d: unexpected %q in expression", tok.Loc.Line, tok.Text)
}

func (p *Parser) parseCall(callee string) (expr.Node, error) {
	p.next() // '('
	call := &expr.Call{Callee: callee}
	if p.isPunct(")") {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseConstantExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return call, nil
}

// parseNumber parses an integer or floating pp-number, dropping C suffixes.
func parseNumber(text string, line int) (expr.Node, error) {
	raw := text
	if isFloatLiteral(text) {
		trimmed := strings.TrimRight(text, "fFlL")
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad floating constant %q", line, raw)
		}
		return &expr.Constant{IsFloat: true, FloatValue: v, Raw: raw}, nil
	}
	trimmed := strings.TrimRight(text, "uUlL")
	v, err := strconv.ParseInt(trimmed, 0, 64)
	if err != nil {
		// Large unsigned constants overflow int64; keep the bits.
		u, uerr := strconv.ParseUint(trimmed, 0, 64)
		if uerr != nil {
			return nil, fmt.Errorf("line %d: bad integer constant %q", line, raw)
		}
		v = int64(u)
	}
	return &expr.Constant{Value: v, Raw: raw}, nil
}

func isFloatLiteral(text string) bool {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		return strings.ContainsAny(text, "pP")
	}
	return strings.ContainsAny(text, ".eE")
}

// parseCharConstant evaluates a character literal to its integer value.
func parseCharConstant(text string, line int) (expr.Node, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(text, "'"), "'")
	if body == "" {
		return nil, fmt.Errorf("line %d: empty character constant", line)
	}
	var v int64
	if body[0] == '\\' {
		var err error
		v, err = decodeEscape(body[1:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %v in %s", line, err, text)
		}
	} else {
		v = int64(body[0])
	}
	return &expr.Constant{Value: v, Raw: text}, nil
}

func decodeEscape(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("truncated escape")
	}
	switch s[0] {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return 7, nil
	case 'b':
		return 8, nil
	case 'f':
		return 12, nil
	case 'v':
		return 11, nil
	case '0', '1', '2', '3', '4', '5', '6', '7':
		return strconv.ParseInt(s, 8, 64)
	case 'x':
		return strconv.ParseInt(s[1:], 16, 64)
	case '\\', '\'', '"', '?':
		return int64(s[0]), nil
	}
	return 0, fmt.Errorf("unknown escape \\%s", s)
}

// unquoteString strips the surrounding quotes of a string literal token.
// Escape sequences inside stay as written; both emitters pass them through.
func unquoteString(text string) string {
	return strings.TrimSuffix(strings.TrimPrefix(text, `"`), `"`)
}
