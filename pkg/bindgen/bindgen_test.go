package bindgen

import (
	"strings"
	"testing"

	"github.com/raymyers/cbind/pkg/translate"
)

func generate(t *testing.T, header string) string {
	t.Helper()
	result, err := translate.Header(header, "temp.h", translate.Options{})
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	var sb strings.Builder
	if err := Generate(&sb, result.Model, result.Resolver, Options{PackageName: "demo"}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	return sb.String()
}

func wantContains(t *testing.T, got string, snippets ...string) {
	t.Helper()
	for _, s := range snippets {
		if !strings.Contains(got, s) {
			t.Errorf("output missing %q\n---\n%s", s, got)
		}
	}
}

func TestGenerateMacros(t *testing.T) {
	got := generate(t, `#define LIMIT 16
#define B(x,y) x+y
#define C(a,b,c) a?b:c
`)
	wantContains(t, got,
		"package demo",
		"const LIMIT = 16",
		"func B(x, y int64) int64 {\n\treturn (x + y)\n}",
		"func C(a, b, c int64) int64 {\n\tif a != 0 {\n\t\treturn b\n\t}\n\treturn c\n}",
	)
}

func TestGenerateMacroSubcall(t *testing.T) {
	got := generate(t, `#define minus_macro(x,y) x-y
#define subcall_macro_minus(x,y) minus_macro(x,y)
`)
	wantContains(t, got,
		"func minus_macro(x, y int64) int64 {\n\treturn (x - y)\n}",
		"func subcall_macro_minus(x, y int64) int64 {\n\treturn minus_macro(x, y)\n}",
	)
}

func TestGenerateStruct(t *testing.T) {
	got := generate(t, "struct point { int x; int y; };\ntypedef struct point point_t;\n")
	wantContains(t, got,
		"type point struct {",
		"\tx int32\n",
		"\ty int32\n",
		"type point_t = point",
	)
}

func TestGeneratePaddingAndPacked(t *testing.T) {
	got := generate(t, `
struct natural { char b; int a; };
struct __attribute__((packed)) tight { char b; int a; };
`)
	wantContains(t, got,
		"_pad1 [3]byte",
		"// tight is packed: size 5, align 1.",
	)
	if strings.Contains(strings.Split(got, "type tight struct")[1], "_pad") {
		t.Error("packed struct has interior padding")
	}
}

func TestGenerateBitfieldAccessors(t *testing.T) {
	got := generate(t, "struct flags { int a; int d : 15; int : 17; };\n")
	wantContains(t, got,
		"bits4 uint32",
		"func (s *flags) d() int64 {",
		"func (s *flags) unnamed_1() int64 {",
	)
}

func TestGeneratePackedBitfields(t *testing.T) {
	got := generate(t, "struct __attribute__((packed)) packed_foo { int a; char b; int c; int d : 15; int : 17; };\n")
	wantContains(t, got,
		"// packed_foo is packed: size 13, align 1.",
		"raw [13]byte",
		"func (s *packed_foo) a() *int32 {\n\treturn (*int32)(unsafe.Pointer(&s.raw[0]))\n}",
		"func (s *packed_foo) c() *int32 {\n\treturn (*int32)(unsafe.Pointer(&s.raw[5]))\n}",
		"v |= uint64(s.raw[9+i]) << (8 * i)",
		"return int64(v>>0) & ((1 << 15) - 1)",
		"func (s *packed_foo) unnamed_1() int64 {",
		"return int64(v>>7) & ((1 << 17) - 1)",
	)
	if strings.Contains(got, "bits9") || strings.Contains(got, "bits10") {
		t.Errorf("packed struct emitted storage-unit fields:\n%s", got)
	}
}

func TestGenerateUnion(t *testing.T) {
	got := generate(t, "union u { char tag; double d; };\n")
	wantContains(t, got,
		"type u struct {",
		"raw [8]byte",
		"func (u *u) d() *float64 {",
		"unsafe.Pointer",
	)
}

func TestGenerateEnum(t *testing.T) {
	got := generate(t, "enum color { RED, GREEN = 5, BLUE };\n")
	wantContains(t, got,
		"type color = int32",
		"RED color = 0",
		"GREEN color = 5",
		"BLUE color = 6",
	)
	if strings.Count(got, "BLUE") != 1 {
		t.Errorf("BLUE declared more than once:\n%s", got)
	}
}

func TestGenerateFunctionRegistration(t *testing.T) {
	got := generate(t, `
int dist(int a, int b);
void reset(void);
char *name(void);
`)
	wantContains(t, got,
		"github.com/ebitengine/purego",
		"dist func(a int32, b int32) int32",
		"reset func()",
		"name func() *byte",
		"func RegisterLib(lib uintptr) {",
		`purego.RegisterLibFunc(&dist, lib, "dist")`,
		`purego.RegisterLibFunc(&reset, lib, "reset")`,
	)
}

func TestGenerateUntranslatableMacroComment(t *testing.T) {
	got := generate(t, "#define BAD if (x) y\n")
	wantContains(t, got, "// BAD: not translatable")
}
