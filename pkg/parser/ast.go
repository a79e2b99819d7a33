// ast.go defines the declaration nodes produced by the parser. The set is
// closed; the resolver and both emitters switch exhaustively over it.
package parser

import (
	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
)

// Decl is the interface over all top-level declaration nodes. Every node
// carries a source location and a diagnostics list; a node with
// diagnostics still reaches the model.
type Decl interface {
	implDecl()
	Location() ctypes.SourceLoc
	ErrorList() []string
	AddError(msg string)
}

// StructDecl is a top-level struct or union definition or forward
// declaration ("struct foo { ... };" or "struct foo;").
type StructDecl struct {
	expr.Diagnostics
	Def *ctypes.Struct
	Src ctypes.SourceLoc
}

// EnumDecl is a top-level enum definition or forward declaration.
type EnumDecl struct {
	expr.Diagnostics
	Def *ctypes.Enum
	Src ctypes.SourceLoc
}

// TypedefDecl introduces Name as an alias for Type.
type TypedefDecl struct {
	expr.Diagnostics
	Name string
	Type ctypes.CType
	Src  ctypes.SourceLoc
}

// FunctionDecl is a function prototype.
type FunctionDecl struct {
	expr.Diagnostics
	Name string
	Type *ctypes.Function
	Src  ctypes.SourceLoc
}

// VariableDecl is a top-level variable or constant declaration.
type VariableDecl struct {
	expr.Diagnostics
	Name string
	Type ctypes.CType
	Init expr.Node // nil when no initializer
	Src  ctypes.SourceLoc
}

// BadDecl marks source that could not be parsed as a declaration. It keeps
// the error visible in the model instead of silently dropping input.
type BadDecl struct {
	expr.Diagnostics
	Src ctypes.SourceLoc
}

func (*StructDecl) implDecl()   {}
func (*EnumDecl) implDecl()     {}
func (*TypedefDecl) implDecl()  {}
func (*FunctionDecl) implDecl() {}
func (*VariableDecl) implDecl() {}
func (*BadDecl) implDecl()      {}

func (d *StructDecl) Location() ctypes.SourceLoc   { return d.Src }
func (d *EnumDecl) Location() ctypes.SourceLoc     { return d.Src }
func (d *TypedefDecl) Location() ctypes.SourceLoc  { return d.Src }
func (d *FunctionDecl) Location() ctypes.SourceLoc { return d.Src }
func (d *VariableDecl) Location() ctypes.SourceLoc { return d.Src }
func (d *BadDecl) Location() ctypes.SourceLoc      { return d.Src }

// TagCounter numbers struct/union/enum definitions within one parse run.
// Every definition ticks it, named or not, so synthetic anonymous tags are
// deterministic for a given header. It is scoped to the run, never global.
type TagCounter struct {
	n int
}

// NewTagCounter returns a counter seeded for a fresh parse run.
func NewTagCounter() *TagCounter {
	return &TagCounter{n: 1}
}

// Tick records one definition and returns the value used for anonymous
// naming.
func (c *TagCounter) Tick() int {
	c.n++
	return c.n
}
