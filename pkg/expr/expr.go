// Package expr defines the canonical expression tree produced by the
// expression normalizer. Macro bodies, enumerator values, bitfield widths,
// and array sizes all normalize into this closed set of variants.
package expr

import (
	"fmt"
	"strings"
)

// Diagnostics accumulates non-fatal errors on a node. A node with
// diagnostics still participates in the model and in both outputs.
type Diagnostics struct {
	errs []string
}

// AddError attaches a diagnostic to the node.
func (d *Diagnostics) AddError(msg string) {
	d.errs = append(d.errs, msg)
}

// ErrorList returns the attached diagnostics. It never returns nil
// semantics to callers; an empty list means no diagnostic applies.
func (d *Diagnostics) ErrorList() []string {
	return d.errs
}

// Node is the interface over all expression variants.
type Node interface {
	Klass() string
	// Text renders the canonical, fully parenthesized source form.
	Text() string
	ErrorList() []string
	AddError(msg string)
}

// Env supplies identifier values for evaluation.
type Env map[string]int64

// Constant is an integer or floating literal.
type Constant struct {
	Diagnostics
	Value      int64
	IsFloat    bool
	FloatValue float64
	Raw        string // original spelling, e.g. "0x10" or "1.5e3"
}

// NewConstant returns an integer constant with a decimal spelling.
func NewConstant(v int64) *Constant {
	return &Constant{Value: v, Raw: fmt.Sprintf("%d", v)}
}

func (c *Constant) Klass() string { return "ConstantExpressionNode" }

func (c *Constant) Text() string {
	if c.Raw != "" {
		return c.Raw
	}
	if c.IsFloat {
		return fmt.Sprintf("%g", c.FloatValue)
	}
	return fmt.Sprintf("%d", c.Value)
}

// StringLiteral is a string constant operand.
type StringLiteral struct {
	Diagnostics
	Value string // contents without quotes
}

func (s *StringLiteral) Klass() string { return "ConstantExpressionNode" }
func (s *StringLiteral) Text() string  { return `"` + s.Value + `"` }

// Identifier references a name: a macro parameter, another macro, an
// enumerator, or a typedef.
type Identifier struct {
	Diagnostics
	Name string
}

func (i *Identifier) Klass() string { return "IdentifierExpressionNode" }
func (i *Identifier) Text() string  { return i.Name }

// Unary applies a prefix operator.
type Unary struct {
	Diagnostics
	Name    string // operator name, e.g. "negation"
	Format  string // e.g. "(-%s)"
	Operand Node
}

func (u *Unary) Klass() string { return "UnaryExpressionNode" }
func (u *Unary) Text() string  { return fmt.Sprintf(u.Format, u.Operand.Text()) }

// Binary applies an infix operator. The format fully parenthesizes the
// result so that emission is deterministic regardless of input spacing.
type Binary struct {
	Diagnostics
	Name   string // operator name, e.g. "addition"
	Format string // e.g. "(%s + %s)"
	Left   Node
	Right  Node
}

func (b *Binary) Klass() string { return "BinaryExpressionNode" }
func (b *Binary) Text() string  { return fmt.Sprintf(b.Format, b.Left.Text(), b.Right.Text()) }

// Conditional is the ternary operator kept in native conditional form.
// Lowering it to an and/or chain would misselect when the middle operand
// is falsy, so both emitters branch on the condition instead.
type Conditional struct {
	Diagnostics
	Cond Node
	Then Node
	Else Node
}

func (c *Conditional) Klass() string { return "ConditionalExpressionNode" }

func (c *Conditional) Text() string {
	return fmt.Sprintf("(%s ? %s : %s)", c.Cond.Text(), c.Then.Text(), c.Else.Text())
}

// Call is a macro-to-macro invocation kept by name, letting an emitter
// either inline the callee or reference its generated implementation.
type Call struct {
	Diagnostics
	Callee string
	Args   []Node
}

func (c *Call) Klass() string { return "CallExpressionNode" }

func (c *Call) Text() string {
	parts := make([]string, len(c.Args))
	for i, arg := range c.Args {
		parts[i] = arg.Text()
	}
	return fmt.Sprintf("(%s (%s))", c.Callee, strings.Join(parts, ", "))
}

// Eval evaluates a node to an integer under env. Integer division and
// modulo truncate toward zero, matching C semantics. Calls and string
// operands are not evaluable and return an error.
func Eval(n Node, env Env) (int64, error) {
	switch e := n.(type) {
	case *Constant:
		if e.IsFloat {
			return int64(e.FloatValue), nil
		}
		return e.Value, nil
	case *StringLiteral:
		return 0, fmt.Errorf("string literal %s is not an integer constant", e.Text())
	case *Identifier:
		if v, ok := env[e.Name]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("undefined identifier %q", e.Name)
	case *Unary:
		v, err := Eval(e.Operand, env)
		if err != nil {
			return 0, err
		}
		switch e.Name {
		case "negation":
			return -v, nil
		case "plus":
			return v, nil
		case "complement":
			return ^v, nil
		case "logical-not":
			return boolToInt(v == 0), nil
		}
		return 0, fmt.Errorf("cannot evaluate unary operator %q", e.Name)
	case *Binary:
		l, err := Eval(e.Left, env)
		if err != nil {
			return 0, err
		}
		r, err := Eval(e.Right, env)
		if err != nil {
			return 0, err
		}
		return evalBinary(e.Name, l, r)
	case *Conditional:
		cond, err := Eval(e.Cond, env)
		if err != nil {
			return 0, err
		}
		if cond != 0 {
			return Eval(e.Then, env)
		}
		return Eval(e.Else, env)
	case *Call:
		return 0, fmt.Errorf("cannot evaluate call to %q", e.Callee)
	}
	return 0, fmt.Errorf("cannot evaluate %T", n)
}

func evalBinary(name string, l, r int64) (int64, error) {
	switch name {
	case "addition":
		return l + r, nil
	case "subtraction":
		return l - r, nil
	case "multiplication":
		return l * r, nil
	case "division":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "modulo":
		if r == 0 {
			return 0, fmt.Errorf("modulo by zero")
		}
		return l % r, nil
	case "shift-left":
		return l << uint(r), nil
	case "shift-right":
		return l >> uint(r), nil
	case "bitwise-and":
		return l & r, nil
	case "bitwise-or":
		return l | r, nil
	case "bitwise-xor":
		return l ^ r, nil
	case "equals":
		return boolToInt(l == r), nil
	case "not-equals":
		return boolToInt(l != r), nil
	case "less-than":
		return boolToInt(l < r), nil
	case "greater-than":
		return boolToInt(l > r), nil
	case "less-or-equal":
		return boolToInt(l <= r), nil
	case "greater-or-equal":
		return boolToInt(l >= r), nil
	case "logical-and":
		return boolToInt(l != 0 && r != 0), nil
	case "logical-or":
		return boolToInt(l != 0 || r != 0), nil
	}
	return 0, fmt.Errorf("cannot evaluate binary operator %q", name)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
