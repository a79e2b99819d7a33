package expr

import (
	"strings"
	"testing"
)

func bin(name, format string, left, right Node) *Binary {
	return &Binary{Name: name, Format: format, Left: left, Right: right}
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want int64
	}{
		{"addition", bin("addition", "(%s + %s)", NewConstant(2), NewConstant(3)), 5},
		{"subtraction", bin("subtraction", "(%s - %s)", NewConstant(2), NewConstant(3)), -1},
		{"multiplication", bin("multiplication", "(%s * %s)", NewConstant(4), NewConstant(3)), 12},
		// C division truncates toward zero, including for negative operands.
		{"division", bin("division", "(%s / %s)", NewConstant(-7), NewConstant(2)), -3},
		{"modulo", bin("modulo", "(%s %% %s)", NewConstant(-7), NewConstant(2)), -1},
		{"shift-left", bin("shift-left", "(%s << %s)", NewConstant(1), NewConstant(4)), 16},
		{"shift-right", bin("shift-right", "(%s >> %s)", NewConstant(16), NewConstant(2)), 4},
		{"bitwise-and", bin("bitwise-and", "(%s & %s)", NewConstant(12), NewConstant(10)), 8},
		{"bitwise-xor", bin("bitwise-xor", "(%s ^ %s)", NewConstant(12), NewConstant(10)), 6},
		{"equals true", bin("equals", "(%s == %s)", NewConstant(3), NewConstant(3)), 1},
		{"less-than false", bin("less-than", "(%s < %s)", NewConstant(3), NewConstant(3)), 0},
		{"logical-and", bin("logical-and", "(%s && %s)", NewConstant(7), NewConstant(2)), 1},
		{"logical-or", bin("logical-or", "(%s || %s)", NewConstant(0), NewConstant(0)), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(tc.node, nil)
			if err != nil {
				t.Fatalf("Eval error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEvalUnary(t *testing.T) {
	tests := []struct {
		name string
		op   string
		v    int64
		want int64
	}{
		{"negation", "negation", 5, -5},
		{"plus", "plus", 5, 5},
		{"complement", "complement", 0, -1},
		{"logical-not zero", "logical-not", 0, 1},
		{"logical-not nonzero", "logical-not", 9, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Eval(&Unary{Name: tc.op, Format: "(%s)", Operand: NewConstant(tc.v)}, nil)
			if err != nil {
				t.Fatalf("Eval error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEvalIdentifierEnv(t *testing.T) {
	node := bin("addition", "(%s + %s)", &Identifier{Name: "TEST_1"}, NewConstant(1))
	got, err := Eval(node, Env{"TEST_1": 41})
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if _, err := Eval(node, nil); err == nil || !strings.Contains(err.Error(), "undefined identifier") {
		t.Errorf("err = %v, want undefined identifier", err)
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	if _, err := Eval(bin("division", "(%s / %s)", NewConstant(1), NewConstant(0)), nil); err == nil {
		t.Error("want error for division by zero")
	}
	if _, err := Eval(bin("modulo", "(%s %% %s)", NewConstant(1), NewConstant(0)), nil); err == nil {
		t.Error("want error for modulo by zero")
	}
}

func TestEvalCallNotConstant(t *testing.T) {
	call := &Call{Callee: "f", Args: []Node{NewConstant(1)}}
	if _, err := Eval(call, nil); err == nil {
		t.Error("want error for call node")
	}
	if got := call.Text(); got != "(f (1))" {
		t.Errorf("Text() = %q, want (f (1))", got)
	}
}

func TestDiagnosticsAccumulate(t *testing.T) {
	c := NewConstant(1)
	if len(c.ErrorList()) != 0 {
		t.Fatal("fresh node has diagnostics")
	}
	c.AddError("first")
	c.AddError("second")
	if got := c.ErrorList(); len(got) != 2 || got[0] != "first" {
		t.Errorf("ErrorList() = %v", got)
	}
}
