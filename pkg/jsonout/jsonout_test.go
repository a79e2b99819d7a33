package jsonout

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/cbind/pkg/model"
	"github.com/raymyers/cbind/pkg/translate"
)

// marshalRecords runs the pipeline and round-trips the emitted JSON so
// expectations can be written as plain maps.
func marshalRecords(t *testing.T, header string, opts Options) []map[string]any {
	t.Helper()
	result, err := translate.Header(header, "temp.h", translate.Options{})
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	data, err := Marshal(result.Model, opts)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	return got
}

func TestMacroRecords(t *testing.T) {
	got := marshalRecords(t, "#define MACRO 1\n#define B(x,y) x+y\n", Options{})
	want := []map[string]any{
		{"name": "MACRO", "type": "macro", "value": "1"},
		{"args": []any{"x", "y"}, "body": "(x + y)", "name": "B", "type": "macro_function"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumRecords(t *testing.T) {
	header := `
typedef enum {
	TEST_1 = 0,
	TEST_2
} test_status_t;
`
	got := marshalRecords(t, header, Options{PathOverride: "/some-path/temp.h"})

	constExpr := func(v float64) map[string]any {
		return map[string]any{"Klass": "ConstantExpressionNode", "errors": []any{}, "value": v}
	}
	successor := map[string]any{
		"Klass":        "BinaryExpressionNode",
		"can_be_ctype": []any{false, false},
		"errors":       []any{},
		"format":       "(%s + %s)",
		"left":         map[string]any{"Klass": "IdentifierExpressionNode", "errors": []any{}, "name": "TEST_1"},
		"name":         "addition",
		"right":        constExpr(1),
	}
	want := []map[string]any{
		{
			"fields": []any{
				map[string]any{"ctype": constExpr(0), "name": "TEST_1"},
				map[string]any{"ctype": successor, "name": "TEST_2"},
			},
			"name": "anon_2",
			"type": "enum",
		},
		{"name": "TEST_1", "type": "constant", "value": "0"},
		{"name": "TEST_2", "type": "constant", "value": "(TEST_1 + 1)"},
		{
			"ctype": map[string]any{
				"Klass":     "CtypesEnum",
				"anonymous": true,
				"enumerators": []any{
					[]any{"TEST_1", constExpr(0)},
					[]any{"TEST_2", successor},
				},
				"errors": []any{},
				"opaque": false,
				"src":    []any{"/some-path/temp.h", float64(2)},
				"tag":    "anon_2",
			},
			"name": "test_status_t",
			"type": "typedef",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestStructRecordWithBitfields(t *testing.T) {
	header := `
struct foo
{
	int a;
	int d : 15;
	int   : 17;
};
`
	got := marshalRecords(t, header, Options{})

	intNode := map[string]any{
		"Klass": "CtypesSimple", "errors": []any{},
		"longs": float64(0), "name": "int", "signed": true,
	}
	bitfieldNode := func(width float64) map[string]any {
		return map[string]any{
			"Klass": "CtypesBitfield",
			"base":  intNode,
			"bitfield": map[string]any{
				"Klass": "ConstantExpressionNode", "errors": []any{}, "value": width,
			},
			"errors": []any{},
		}
	}
	want := []map[string]any{
		{
			"fields": []any{
				map[string]any{"ctype": intNode, "name": "a"},
				map[string]any{"bitfield": "15", "ctype": bitfieldNode(15), "name": "d"},
				map[string]any{"bitfield": "17", "ctype": bitfieldNode(17), "name": nil},
			},
			"name": "foo",
			"type": "struct",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestFunctionRecords(t *testing.T) {
	header := `
int bar2(int a);
void foo(void);
`
	got := marshalRecords(t, header, Options{})

	intNode := func(identifier string) map[string]any {
		return map[string]any{
			"Klass": "CtypesSimple", "errors": []any{}, "identifier": identifier,
			"longs": float64(0), "name": "int", "signed": true,
		}
	}
	want := []map[string]any{
		{
			"args": []any{intNode("a")},
			"name": "bar2",
			"return": map[string]any{
				"Klass": "CtypesSimple", "errors": []any{},
				"longs": float64(0), "name": "int", "signed": true,
			},
			"type":     "function",
			"variadic": false,
		},
		{
			"args": []any{},
			"name": "foo",
			"return": map[string]any{
				"Klass": "CtypesSimple", "errors": []any{},
				"longs": float64(0), "name": "void", "signed": true,
			},
			"type":     "function",
			"variadic": false,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestVariableRecords(t *testing.T) {
	got := marshalRecords(t, "int limit = 64;\nint depth;\n", Options{})
	want := []map[string]any{
		{"name": "limit", "type": "constant", "value": "64"},
		{"name": "depth", "type": "constant", "value": ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripDeterminism(t *testing.T) {
	header := `
#define LIMIT 16
struct point { int x; int y; };
typedef struct point point_t;
enum color { RED, GREEN = 5, BLUE };
int dist(struct point *a, struct point *b);
`
	var outputs [][]byte
	for i := 0; i < 2; i++ {
		result, err := translate.Header(header, "temp.h", translate.Options{})
		if err != nil {
			t.Fatalf("translate error: %v", err)
		}
		data, err := Marshal(result.Model, Options{PathOverride: "/some-path/temp.h"})
		if err != nil {
			t.Fatalf("Marshal error: %v", err)
		}
		outputs = append(outputs, data)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("two fresh parses produced different bytes")
	}
}

func TestMacroFailureKeepsRawBody(t *testing.T) {
	result, err := translate.Header("#define BAD do { } while(0)\n", "temp.h", translate.Options{})
	if err != nil {
		t.Fatalf("translate error: %v", err)
	}
	records := Records(result.Model, Options{})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec["name"] != "BAD" || rec["type"] != string(model.KindMacro) {
		t.Errorf("record = %v", rec)
	}
	if rec["value"] == "" {
		t.Error("raw body missing from value")
	}
	if errs, ok := rec["errors"].([]string); !ok || len(errs) == 0 {
		t.Errorf("errors = %v, want non-empty", rec["errors"])
	}
}
