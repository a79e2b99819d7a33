package translate

import (
	"strings"
	"testing"

	"github.com/raymyers/cbind/pkg/model"
)

func header(t *testing.T, source string, opts Options) *Result {
	t.Helper()
	result, err := Header(source, "temp.h", opts)
	if err != nil {
		t.Fatalf("Header error: %v", err)
	}
	return result
}

func kinds(m *model.Model) []model.Kind {
	var out []model.Kind
	for _, e := range m.Entries() {
		out = append(out, e.Kind)
	}
	return out
}

func TestEntriesFollowSourceOrder(t *testing.T) {
	result := header(t, `#define FIRST 1
struct point { int x; int y; };
#define SECOND 2
int dist(struct point *a, struct point *b);
`, Options{})

	var names []string
	for _, e := range result.Model.Entries() {
		names = append(names, e.Name)
	}
	want := []string{"FIRST", "point", "SECOND", "dist"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", names, want)
	}
}

func TestEnumeratorsSurfaceAsConstants(t *testing.T) {
	result := header(t, "enum color { RED, GREEN = 5, BLUE };\n", Options{})
	got := kinds(result.Model)
	want := []model.Kind{model.KindEnum, model.KindConstant, model.KindConstant, model.KindConstant}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	blue, ok := result.Model.Lookup("BLUE")
	if !ok {
		t.Fatal("BLUE not in model")
	}
	if text := blue.Value.Text(); text != "(GREEN + 1)" {
		t.Errorf("BLUE = %q, want (GREEN + 1)", text)
	}
	if result.Resolver.Env()["BLUE"] != 6 {
		t.Errorf("env BLUE = %d, want 6", result.Resolver.Env()["BLUE"])
	}
}

func TestSeededDefinesExpandButDoNotEmit(t *testing.T) {
	result := header(t, "char buf[VALUE];\n", Options{
		Defines: map[string]string{"VALUE": "4"},
	})
	if result.Model.Len() != 1 {
		t.Fatalf("got %d entries, want 1", result.Model.Len())
	}
	buf := result.Model.Entries()[0]
	if buf.Kind != model.KindConstant || buf.Name != "buf" {
		t.Errorf("entry = %+v", buf)
	}
	size, _, err := result.Resolver.SizeAlign(buf.Type)
	if err != nil {
		t.Fatalf("SizeAlign error: %v", err)
	}
	if size != 4 {
		t.Errorf("sizeof(buf) = %d, want 4", size)
	}
}

func TestVariableBecomesConstantEntry(t *testing.T) {
	result := header(t, "int limit = 64;\n", Options{})
	e, ok := result.Model.Lookup("limit")
	if !ok {
		t.Fatal("limit not in model")
	}
	if e.Kind != model.KindConstant {
		t.Errorf("kind = %q, want constant", e.Kind)
	}
	if e.Value == nil || e.Value.Text() != "64" {
		t.Errorf("value = %v, want 64", e.Value)
	}
}

func TestBareFlagMacro(t *testing.T) {
	result := header(t, "#define FLAG\n", Options{})
	e, ok := result.Model.Lookup("FLAG")
	if !ok {
		t.Fatal("FLAG not in model")
	}
	if e.Value != nil || e.Raw != "" || len(e.Errors) != 0 {
		t.Errorf("entry = %+v, want empty value without diagnostics", e)
	}
}

func TestStringifyMacroBodyNormalizes(t *testing.T) {
	result := header(t, "#define funny(x) \"funny\" #x\n", Options{})
	e, ok := result.Model.Lookup("funny")
	if !ok {
		t.Fatal("funny not in model")
	}
	if len(e.Errors) != 0 || e.Raw != "" {
		t.Errorf("entry = %+v, want normalized body without diagnostics", e)
	}
	if e.Body == nil || e.Body.Text() != `("funny" + x)` {
		t.Errorf("body = %v, want (\"funny\" + x)", e.Body)
	}
}

func TestUnparseableMacroKeepsDiagnostic(t *testing.T) {
	result := header(t, "#define BAD if (x) y\n", Options{})
	e, ok := result.Model.Lookup("BAD")
	if !ok {
		t.Fatal("BAD not in model")
	}
	if len(e.Errors) == 0 {
		t.Error("want diagnostic on entry")
	}
	if e.Raw == "" {
		t.Error("want raw body preserved")
	}
}

func TestBadDeclarationWarnsButContinues(t *testing.T) {
	result := header(t, "struct ;\nint ok;\n", Options{})
	if _, found := result.Model.Lookup("ok"); !found {
		t.Error("declaration after the bad one is missing")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "temp.h") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one locating the bad declaration", result.Warnings)
	}
}

func TestArityMismatchIsRunFatal(t *testing.T) {
	_, err := Header("#define F(a,b) a+b\nint x = F(1);\n", "temp.h", Options{})
	if err == nil {
		t.Fatal("want run-fatal error")
	}
	if !strings.Contains(err.Error(), "temp.h") {
		t.Errorf("err = %v, want file context", err)
	}
}

func TestMacroFunctionEntry(t *testing.T) {
	result := header(t, "#define C(a,b,c) a?b:c\n", Options{})
	e, ok := result.Model.Lookup("C")
	if !ok {
		t.Fatal("C not in model")
	}
	if e.Kind != model.KindMacroFunction {
		t.Fatalf("kind = %q, want macro_function", e.Kind)
	}
	if len(e.Args) != 3 || e.Args[0] != "a" {
		t.Errorf("args = %v, want [a b c]", e.Args)
	}
	if got := e.Body.Text(); got != "(a ? b : c)" {
		t.Errorf("body = %q, want (a ? b : c)", got)
	}
}
