// Package platform describes the target ABI used for layout: sizes and
// alignments of the C scalar kinds plus optional predefined macros.
// Profiles are loadable from YAML; the default matches LP64 gcc.
package platform

import (
	"fmt"

	"github.com/raymyers/cbind/pkg/ctypes"
	"gopkg.in/yaml.v3"
)

// TypeInfo is the size and alignment of one scalar kind, in bytes.
type TypeInfo struct {
	Size  int `yaml:"size"`
	Align int `yaml:"align"`
}

// Profile is a target ABI description.
type Profile struct {
	Name       string   `yaml:"name"`
	Bool       TypeInfo `yaml:"bool"`
	Char       TypeInfo `yaml:"char"`
	Short      TypeInfo `yaml:"short"`
	Int        TypeInfo `yaml:"int"`
	Long       TypeInfo `yaml:"long"`
	LongLong   TypeInfo `yaml:"longlong"`
	Float      TypeInfo `yaml:"float"`
	Double     TypeInfo `yaml:"double"`
	LongDouble TypeInfo `yaml:"longdouble"`
	Pointer    TypeInfo `yaml:"pointer"`
	// Defines are predefined macros seeded into the macro table before
	// parsing begins.
	Defines map[string]string `yaml:"defines"`
}

// Default returns the LP64 profile used by gcc on x86-64 Linux.
func Default() *Profile {
	return &Profile{
		Name:       "lp64",
		Bool:       TypeInfo{1, 1},
		Char:       TypeInfo{1, 1},
		Short:      TypeInfo{2, 2},
		Int:        TypeInfo{4, 4},
		Long:       TypeInfo{8, 8},
		LongLong:   TypeInfo{8, 8},
		Float:      TypeInfo{4, 4},
		Double:     TypeInfo{8, 8},
		LongDouble: TypeInfo{16, 16},
		Pointer:    TypeInfo{8, 8},
	}
}

// Load parses a YAML profile. Omitted fields keep their Default values, so
// a profile file only needs to state what differs from LP64.
func Load(data []byte) (*Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing platform profile: %w", err)
	}
	return p, nil
}

// Scalar returns the size and alignment of a scalar type.
func (p *Profile) Scalar(t *ctypes.Simple) (TypeInfo, error) {
	switch t.Name {
	case "void":
		// sizeof(void) is a GCC extension; it behaves like char.
		return TypeInfo{1, 1}, nil
	case "_Bool":
		return p.Bool, nil
	case "char":
		return p.Char, nil
	case "short":
		return p.Short, nil
	case "int":
		switch t.Longs {
		case 0:
			return p.Int, nil
		case 1:
			return p.Long, nil
		default:
			return p.LongLong, nil
		}
	case "float":
		return p.Float, nil
	case "double":
		if t.Longs > 0 {
			return p.LongDouble, nil
		}
		return p.Double, nil
	}
	return TypeInfo{}, fmt.Errorf("unknown scalar type %q", t.Name)
}
