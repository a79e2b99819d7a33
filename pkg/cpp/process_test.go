package cpp

import (
	"strings"
	"testing"
)

func expandSource(t *testing.T, source string) (string, *Processor) {
	t.Helper()
	proc := NewProcessor(NewMacroTable())
	tokens, err := proc.Process(source, "test.h")
	if err != nil {
		t.Fatalf("Process(%q) error: %v", source, err)
	}
	return strings.TrimSpace(TokensToString(tokens)), proc
}

func TestObjectMacroExpansion(t *testing.T) {
	got, _ := expandSource(t, "#define A 1\nA + 2\n")
	if got != "1 + 2" {
		t.Errorf("got %q, want %q", got, "1 + 2")
	}
}

func TestFunctionMacroExpansion(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"simple", "#define B(x,y) x+y\nB(1, 2)\n", "1+2"},
		{"nested args", "#define M(x) x*2\nM((1+2))\n", "(1+2)*2"},
		{"through object", "#define A 3\n#define P(x) x+A\nP(1)\n", "1+3"},
		{"subcall", "#define minus(x,y) x-y\n#define sub(x,y) minus(x,y)\nsub(9,4)\n", "9-4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := expandSource(t, tc.source)
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStringification(t *testing.T) {
	got, _ := expandSource(t, "#define S(x) #x\nS(hello)\n")
	if got != `"hello"` {
		t.Errorf("got %q, want %q", got, `"hello"`)
	}
}

func TestTokenPasting(t *testing.T) {
	got, _ := expandSource(t, "#define P(a,b) a##b\nP(foo, bar)\n")
	if got != "foobar" {
		t.Errorf("got %q, want %q", got, "foobar")
	}
}

func TestRedefinitionReplaces(t *testing.T) {
	got, _ := expandSource(t, "#define A 1\n#define A 2\nA\n")
	if got != "2" {
		t.Errorf("got %q, want %q", got, "2")
	}
}

func TestUndef(t *testing.T) {
	got, _ := expandSource(t, "#define A 1\n#undef A\nA\n")
	if got != "A" {
		t.Errorf("got %q, want %q", got, "A")
	}
}

func TestSelfReferenceSuppressed(t *testing.T) {
	got, proc := expandSource(t, "#define REC REC\nREC\n")
	if got != "REC" {
		t.Errorf("got %q, want suppressed expansion %q", got, "REC")
	}
	mac := proc.Macros().Lookup("REC")
	if mac == nil {
		t.Fatal("macro REC not in table")
	}
	found := false
	for _, e := range mac.Errors {
		if strings.Contains(e, "references itself") {
			found = true
		}
	}
	if !found {
		t.Errorf("macro errors = %v, want self-reference diagnostic", mac.Errors)
	}
}

func TestNestedSameMacroInArgumentExpands(t *testing.T) {
	// The inner MIN comes from the call site, not from MIN's own
	// replacement list, so it is a fresh invocation.
	got, proc := expandSource(t, "#define MIN(a,b) ((a)<(b)?(a):(b))\nMIN(MIN(1,2),3)\n")
	want := "((((1)<(2)?(1):(2)))<(3)?(((1)<(2)?(1):(2))):(3))"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	mac := proc.Macros().Lookup("MIN")
	if mac == nil {
		t.Fatal("macro MIN not in table")
	}
	if len(mac.Errors) != 0 {
		t.Errorf("macro errors = %v, want none", mac.Errors)
	}
}

func TestSelfReferenceDiagnosticRecordedOnce(t *testing.T) {
	_, proc := expandSource(t, "#define REC(x) REC(x)\nREC(1)\nREC(2)\n")
	mac := proc.Macros().Lookup("REC")
	if mac == nil {
		t.Fatal("macro REC not in table")
	}
	if len(mac.Errors) != 1 {
		t.Errorf("macro errors = %v, want a single diagnostic", mac.Errors)
	}
}

func TestMutualRecursionTerminates(t *testing.T) {
	// A and B reference each other; hidesets stop the ping-pong.
	got, _ := expandSource(t, "#define A B\n#define B A\nA\n")
	if got != "A" && got != "B" {
		t.Errorf("got %q, want a suppressed name", got)
	}
}

func TestArgumentCountMismatchIsFatal(t *testing.T) {
	proc := NewProcessor(NewMacroTable())
	_, err := proc.Process("#define F(a,b) a+b\nF(1)\n", "test.h")
	if err == nil {
		t.Fatal("expected run-fatal error for argument count mismatch")
	}
}

func TestSkippedDirectivesWarn(t *testing.T) {
	_, proc := expandSource(t, "#include <stdio.h>\n#pragma once\nint x;\n")
	if len(proc.Warnings()) != 2 {
		t.Errorf("warnings = %v, want 2 entries", proc.Warnings())
	}
}

func TestLinemarkersPassSilently(t *testing.T) {
	_, proc := expandSource(t, "# 1 \"file.h\"\nint x;\n")
	if len(proc.Warnings()) != 0 {
		t.Errorf("warnings = %v, want none for linemarker", proc.Warnings())
	}
}

func TestDefinitionOrderPreserved(t *testing.T) {
	_, proc := expandSource(t, "#define Z 1\n#define A 2\n#define Z 3\n")
	got := proc.Macros().Names()
	want := []string{"Z", "A"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
