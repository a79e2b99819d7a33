// Package ctypes defines the canonical C type model that the declaration
// parser populates and both emitters consume. The variant set is closed:
// every consumer switches exhaustively over these types.
package ctypes

import (
	"fmt"
	"strings"

	"github.com/raymyers/cbind/pkg/expr"
)

// SourceLoc records where a declaration appeared, for diagnostics and for
// deterministic anonymous naming. The file component is opaque metadata.
type SourceLoc struct {
	File string
	Line int
}

// CType is the interface over all type variants. Every node carries a
// diagnostics list; a node with diagnostics is still emitted.
type CType interface {
	Klass() string
	String() string
	ErrorList() []string
	AddError(msg string)
}

// Simple is a scalar type: void, char, int, float, _Bool and their
// signed/unsigned/long variants. Longs counts "long" specifiers, so
// "long long int" has Longs == 2 and "long double" has Longs == 1.
type Simple struct {
	expr.Diagnostics
	Name   string // void, char, int, float, double, _Bool
	Signed bool
	Longs  int
}

func (t *Simple) Klass() string { return "CtypesSimple" }

func (t *Simple) String() string {
	var sb strings.Builder
	if !t.Signed {
		sb.WriteString("unsigned ")
	}
	sb.WriteString(strings.Repeat("long ", t.Longs))
	sb.WriteString(t.Name)
	return sb.String()
}

// Pointer is a pointer to a destination type.
type Pointer struct {
	expr.Diagnostics
	Dest CType
}

func (t *Pointer) Klass() string { return "CtypesPointer" }

func (t *Pointer) String() string {
	if t.Dest == nil {
		return "void *"
	}
	return t.Dest.String() + " *"
}

// Array is an array type. Count is nil for an incomplete array ([]).
type Array struct {
	expr.Diagnostics
	Base  CType
	Count expr.Node
}

func (t *Array) Klass() string { return "CtypesArray" }

func (t *Array) String() string {
	if t.Count == nil {
		return t.Base.String() + "[]"
	}
	return fmt.Sprintf("%s[%s]", t.Base.String(), t.Count.Text())
}

// Bitfield is a struct member occupying Width bits of Base's storage unit.
type Bitfield struct {
	expr.Diagnostics
	Base  CType
	Width expr.Node
}

func (t *Bitfield) Klass() string { return "CtypesBitfield" }

func (t *Bitfield) String() string {
	return fmt.Sprintf("%s : %s", t.Base.String(), t.Width.Text())
}

// Member is one struct or union field. An empty name means unnamed
// bitfield padding: it occupies storage but has no visible field name.
type Member struct {
	Name string
	Type CType
}

// Struct is a struct or union definition. Variety is "struct" or "union".
// Packed forces minimum-alignment layout (pack=1) for every member.
// Opaque marks a forward declaration with no body.
type Struct struct {
	expr.Diagnostics
	Tag       string
	Variety   string
	Members   []Member
	Packed    bool
	Anonymous bool
	Opaque    bool
	Src       SourceLoc
}

func (t *Struct) Klass() string { return "CtypesStruct" }

func (t *Struct) String() string { return t.Variety + " " + t.Tag }

// Enumerator is one name/value pair in an enum. Value stays an expression
// tree so that "previous + 1" survives symbolically.
type Enumerator struct {
	Name  string
	Value expr.Node
}

// Enum is an enum definition.
type Enum struct {
	expr.Diagnostics
	Tag         string
	Enumerators []Enumerator
	Anonymous   bool
	Opaque      bool
	Src         SourceLoc
}

func (t *Enum) Klass() string { return "CtypesEnum" }

func (t *Enum) String() string { return "enum " + t.Tag }

// Parameter is one function parameter. Name is empty when the prototype
// omits the identifier.
type Parameter struct {
	Name string
	Type CType
}

// Function is a function prototype type.
type Function struct {
	expr.Diagnostics
	Return   CType
	Params   []Parameter
	Variadic bool
}

func (t *Function) Klass() string { return "CtypesFunction" }

func (t *Function) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.Type.String()
	}
	if t.Variadic {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s (%s)", t.Return.String(), strings.Join(parts, ", "))
}

// TypedefRef is a reference to a named type, resolved by the resolver by
// following the typedef chain to a fixed point.
type TypedefRef struct {
	expr.Diagnostics
	Name string
}

func (t *TypedefRef) Klass() string { return "CtypesTypedef" }

func (t *TypedefRef) String() string { return t.Name }

// Common scalar constructors.

// Void returns the void type.
func Void() *Simple { return &Simple{Name: "void", Signed: true} }

// Int returns signed int.
func Int() *Simple { return &Simple{Name: "int", Signed: true} }

// Char returns signed char.
func Char() *Simple { return &Simple{Name: "char", Signed: true} }

// UInt returns unsigned int.
func UInt() *Simple { return &Simple{Name: "int"} }

// Long returns signed long int.
func Long() *Simple { return &Simple{Name: "int", Signed: true, Longs: 1} }

// Double returns double.
func Double() *Simple { return &Simple{Name: "double", Signed: true} }
