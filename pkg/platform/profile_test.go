package platform

import (
	"testing"

	"github.com/raymyers/cbind/pkg/ctypes"
)

func TestLoadOverridesDefaults(t *testing.T) {
	data := []byte(`
name: ilp32
long: {size: 4, align: 4}
pointer: {size: 4, align: 4}
`)
	p, err := Load(data)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if p.Name != "ilp32" {
		t.Errorf("name = %q, want ilp32", p.Name)
	}
	if p.Long.Size != 4 || p.Pointer.Size != 4 {
		t.Errorf("long=%+v pointer=%+v, want size 4", p.Long, p.Pointer)
	}
	// Unstated fields keep LP64 values.
	if p.Double.Size != 8 || p.Int.Size != 4 {
		t.Errorf("double=%+v int=%+v, want defaults", p.Double, p.Int)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load([]byte("long: [not a mapping")); err == nil {
		t.Error("want error for malformed profile")
	}
}

func TestScalarMapping(t *testing.T) {
	p := Default()
	tests := []struct {
		name string
		t    *ctypes.Simple
		size int
	}{
		{"char", &ctypes.Simple{Name: "char", Signed: true}, 1},
		{"int", &ctypes.Simple{Name: "int", Signed: true}, 4},
		{"long", &ctypes.Simple{Name: "int", Signed: true, Longs: 1}, 8},
		{"long long", &ctypes.Simple{Name: "int", Signed: true, Longs: 2}, 8},
		{"double", &ctypes.Simple{Name: "double", Signed: true}, 8},
		{"long double", &ctypes.Simple{Name: "double", Signed: true, Longs: 1}, 16},
		{"short", &ctypes.Simple{Name: "short", Signed: true}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, err := p.Scalar(tc.t)
			if err != nil {
				t.Fatalf("Scalar error: %v", err)
			}
			if info.Size != tc.size {
				t.Errorf("size = %d, want %d", info.Size, tc.size)
			}
		})
	}
}

func TestScalarUnknown(t *testing.T) {
	if _, err := Default().Scalar(&ctypes.Simple{Name: "quux"}); err == nil {
		t.Error("want error for unknown scalar")
	}
}
