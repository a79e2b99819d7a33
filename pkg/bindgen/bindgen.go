// Package bindgen generates Go binding source from the canonical model:
// struct and union types laid out for the target ABI, enum and macro
// constants, macro functions as Go functions, and runtime symbol
// registration for function prototypes. It never re-parses or re-resolves;
// everything it needs is already in the model and the resolver.
package bindgen

import (
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
	"github.com/raymyers/cbind/pkg/model"
	"github.com/raymyers/cbind/pkg/resolve"
)

// Options configures generation.
type Options struct {
	// PackageName is the package clause of the generated file.
	// Empty means "bindings".
	PackageName string
}

// Generator writes one Go source file from one model.
type Generator struct {
	w    io.Writer
	res  *resolve.Resolver
	opts Options
	err  error

	needTernary bool
	needBtoi    bool
	needUnsafe  bool
	body        strings.Builder
	seen        map[string]bool // names already declared in the output
	funcs       []model.Entry   // function prototypes, registered at the end
}

// Generate writes Go binding source for the model to w.
func Generate(w io.Writer, m *model.Model, res *resolve.Resolver, opts Options) error {
	if opts.PackageName == "" {
		opts.PackageName = "bindings"
	}
	g := &Generator{w: w, res: res, opts: opts, seen: make(map[string]bool)}
	return g.run(m)
}

func (g *Generator) run(m *model.Model) error {
	for _, entry := range m.Entries() {
		switch entry.Kind {
		case model.KindMacro, model.KindConstant:
			g.emitConstant(entry)
		case model.KindMacroFunction:
			g.emitMacroFunction(entry)
		case model.KindStruct:
			g.emitStruct(entry)
		case model.KindEnum:
			g.emitEnum(entry)
		case model.KindTypedef:
			g.emitTypedef(entry)
		case model.KindFunction:
			g.funcs = append(g.funcs, entry)
		}
	}
	g.emitFunctions()
	g.writeHeader()
	g.writeHelpers()
	if g.err != nil {
		return g.err
	}
	_, err := io.WriteString(g.w, g.body.String())
	return err
}

func (g *Generator) printf(format string, args ...any) {
	fmt.Fprintf(&g.body, format, args...)
}

// writeHeader emits the package clause and imports straight to the output;
// the body was buffered so the import set could be discovered first.
func (g *Generator) writeHeader() {
	var hdr strings.Builder
	fmt.Fprintf(&hdr, "// Code generated by cbind. DO NOT EDIT.\n\n")
	fmt.Fprintf(&hdr, "package %s\n\n", g.opts.PackageName)
	fmt.Fprintf(&hdr, "import (\n")
	if g.needUnsafe {
		fmt.Fprintf(&hdr, "\t\"unsafe\"\n\n")
	}
	fmt.Fprintf(&hdr, "\t\"github.com/ebitengine/purego\"\n")
	fmt.Fprintf(&hdr, ")\n\n")
	if _, err := io.WriteString(g.w, hdr.String()); err != nil && g.err == nil {
		g.err = err
	}
}

func (g *Generator) writeHelpers() {
	var h strings.Builder
	if g.needBtoi {
		h.WriteString("func btoi(b bool) int64 {\n\tif b {\n\t\treturn 1\n\t}\n\treturn 0\n}\n\n")
	}
	if g.needTernary {
		h.WriteString("func ternary(c, t, e int64) int64 {\n\tif c != 0 {\n\t\treturn t\n\t}\n\treturn e\n}\n\n")
	}
	if h.Len() > 0 {
		if _, err := io.WriteString(g.w, h.String()); err != nil && g.err == nil {
			g.err = err
		}
	}
}

// --- constants and macros ---

func (g *Generator) emitConstant(entry model.Entry) {
	// Enumerators reach the model twice: inside their enum and as
	// top-level constants. The enum's const block declares them first.
	if g.seen[entry.Name] {
		return
	}
	g.seen[entry.Name] = true
	if entry.Value == nil {
		if entry.Raw != "" || len(entry.Errors) > 0 {
			g.printf("// %s: not translatable: %s\n\n", entry.Name, firstReason(entry))
		}
		return
	}
	text, constant, ok := g.goExpr(entry.Value, nil)
	if !ok {
		g.printf("// %s: not translatable: %s\n\n", entry.Name, entry.Value.Text())
		return
	}
	if constant {
		g.printf("const %s = %s\n\n", entry.Name, text)
	} else {
		g.printf("var %s = %s\n\n", entry.Name, text)
	}
}

func (g *Generator) emitMacroFunction(entry model.Entry) {
	if entry.Body == nil {
		g.printf("// %s: not translatable: %s\n\n", entry.Name, firstReason(entry))
		return
	}
	params := make(map[string]bool, len(entry.Args))
	var names []string
	for _, a := range entry.Args {
		if a == "..." {
			g.printf("// %s: variadic macro not translatable\n\n", entry.Name)
			return
		}
		params[a] = true
		names = append(names, a)
	}
	paramList := ""
	if len(names) > 0 {
		paramList = strings.Join(names, ", ") + " int64"
	}

	// Ternary at the top level becomes a branch instead of a helper call.
	if cond, ok := entry.Body.(*expr.Conditional); ok {
		c, _, cok := g.goExpr(cond.Cond, params)
		t, _, tok := g.goExpr(cond.Then, params)
		e, _, eok := g.goExpr(cond.Else, params)
		if cok && tok && eok {
			g.printf("func %s(%s) int64 {\n", entry.Name, paramList)
			g.printf("\tif %s != 0 {\n\t\treturn %s\n\t}\n\treturn %s\n}\n\n", c, t, e)
			return
		}
	}

	text, _, ok := g.goExpr(entry.Body, params)
	if !ok {
		g.printf("// %s: not translatable: %s\n\n", entry.Name, entry.Body.Text())
		return
	}
	g.printf("func %s(%s) int64 {\n", entry.Name, paramList)
	g.printf("\treturn %s\n}\n\n", text)
}

func firstReason(entry model.Entry) string {
	if len(entry.Errors) > 0 {
		return entry.Errors[0]
	}
	return entry.Raw
}

// --- aggregates ---

func (g *Generator) emitStruct(entry model.Entry) {
	s := entry.Type.(*ctypes.Struct)
	if s.Opaque {
		g.printf("type %s struct{}\n\n", s.Tag)
		return
	}
	layout, err := g.res.Layout(s)
	if err != nil {
		g.printf("// %s %s: layout failed: %v\n\n", s.Variety, s.Tag, err)
		return
	}
	if s.Variety == "union" {
		g.emitUnion(s, layout)
		return
	}

	if s.Packed {
		g.emitPacked(s, layout)
		return
	}
	g.printf("type %s struct {\n", s.Tag)
	cur := 0
	pad := 0
	unnamed := 0
	var accessors strings.Builder
	for i, f := range layout.Fields {
		if f.BitWidth >= 0 {
			// Bitfields share a storage unit; emit the unit once and give
			// each named field an accessor over it.
			unitName, unitBits, emitted := g.bitfieldUnit(s, layout.Fields, i, cur, &pad)
			if emitted {
				g.printf("\t%s uint%d\n", unitName, unitBits)
				cur = f.Offset + unitBits/8
			}
			name := f.Name
			if name == "" {
				unnamed++
				name = fmt.Sprintf("unnamed_%d", unnamed)
			}
			fmt.Fprintf(&accessors, "func (s *%s) %s() int64 {\n", s.Tag, name)
			fmt.Fprintf(&accessors, "\treturn int64(s.%s>>%d) & ((1 << %d) - 1)\n}\n\n",
				unitName, f.BitOffset, f.BitWidth)
			continue
		}
		if f.Offset > cur {
			pad++
			g.printf("\t_pad%d [%d]byte\n", pad, f.Offset-cur)
			cur = f.Offset
		}
		size, _, serr := g.res.SizeAlign(s.Members[i].Type)
		if serr != nil {
			g.printf("\t// %s: %v\n", f.Name, serr)
			continue
		}
		name := f.Name
		if name == "" {
			unnamed++
			name = fmt.Sprintf("unnamed_%d", unnamed)
		}
		g.printf("\t%s %s\n", name, g.goType(s.Members[i].Type))
		cur = f.Offset + size
	}
	if layout.Size > cur {
		pad++
		g.printf("\t_pad%d [%d]byte\n", pad, layout.Size-cur)
	}
	g.printf("}\n\n")
	g.body.WriteString(accessors.String())
}

// emitPacked renders a pack=1 aggregate. Go's own field alignment cannot
// reproduce byte-offset members, so the type is a raw byte array of the
// exact computed size with accessor methods at the resolved offsets.
// Packed bitfields allocate contiguously across byte boundaries, so their
// accessors assemble the spanned bytes little-endian before masking.
func (g *Generator) emitPacked(s *ctypes.Struct, layout resolve.Layout) {
	g.printf("// %s is packed: size %d, align %d.\n", s.Tag, layout.Size, layout.Align)
	g.printf("type %s struct {\n", s.Tag)
	g.printf("\traw [%d]byte\n", layout.Size)
	g.printf("}\n\n")

	unnamed := 0
	for i, f := range layout.Fields {
		name := f.Name
		if f.BitWidth >= 0 {
			if name == "" {
				unnamed++
				name = fmt.Sprintf("unnamed_%d", unnamed)
			}
			bytes := (f.Offset*8+f.BitOffset+f.BitWidth+7)/8 - f.Offset
			g.printf("func (s *%s) %s() int64 {\n", s.Tag, name)
			g.printf("\tv := uint64(0)\n")
			g.printf("\tfor i := 0; i < %d; i++ {\n", bytes)
			g.printf("\t\tv |= uint64(s.raw[%d+i]) << (8 * i)\n", f.Offset)
			g.printf("\t}\n")
			g.printf("\treturn int64(v>>%d) & ((1 << %d) - 1)\n}\n\n", f.BitOffset, f.BitWidth)
			continue
		}
		if name == "" {
			continue
		}
		g.needUnsafe = true
		typ := g.goType(s.Members[i].Type)
		g.printf("func (s *%s) %s() *%s {\n", s.Tag, name, typ)
		g.printf("\treturn (*%s)(unsafe.Pointer(&s.raw[%d]))\n}\n\n", typ, f.Offset)
	}
}

// bitfieldUnit emits bookkeeping for the storage unit holding field i.
// It returns the unit's field name and width, and whether the caller must
// emit the unit now (only the first field of a unit does).
func (g *Generator) bitfieldUnit(s *ctypes.Struct, fields []resolve.Field, i, cur int, pad *int) (string, int, bool) {
	f := fields[i]
	for j := 0; j < i; j++ {
		if fields[j].BitWidth >= 0 && fields[j].Offset == f.Offset {
			return fmt.Sprintf("bits%d", f.Offset), g.unitBits(s, i), false
		}
	}
	if f.Offset > cur {
		*pad++
		g.printf("\t_pad%d [%d]byte\n", *pad, f.Offset-cur)
	}
	return fmt.Sprintf("bits%d", f.Offset), g.unitBits(s, i), true
}

func (g *Generator) unitBits(s *ctypes.Struct, i int) int {
	bf, ok := g.res.Resolve(s.Members[i].Type).(*ctypes.Bitfield)
	if !ok {
		return 32
	}
	size, _, err := g.res.SizeAlign(bf.Base)
	if err != nil {
		return 32
	}
	return size * 8
}

func (g *Generator) emitUnion(s *ctypes.Struct, layout resolve.Layout) {
	g.printf("// %s is a C union: size %d, align %d. Members overlay raw.\n", s.Tag, layout.Size, layout.Align)
	g.printf("type %s struct {\n", s.Tag)
	if layout.Align > 1 {
		g.printf("\t_ [0]uint%d\n", layout.Align*8)
	}
	g.printf("\traw [%d]byte\n", layout.Size)
	g.printf("}\n\n")
	for i, m := range s.Members {
		if m.Name == "" {
			continue
		}
		mt := g.res.Resolve(m.Type)
		if _, ok := mt.(*ctypes.Bitfield); ok {
			continue
		}
		g.needUnsafe = true
		g.printf("func (u *%s) %s() *%s {\n", s.Tag, m.Name, g.goType(s.Members[i].Type))
		g.printf("\treturn (*%s)(unsafe.Pointer(&u.raw[0]))\n}\n\n", g.goType(s.Members[i].Type))
	}
}

func (g *Generator) emitEnum(entry model.Entry) {
	en := entry.Type.(*ctypes.Enum)
	if en.Opaque {
		return
	}
	g.printf("type %s = int32\n\n", en.Tag)
	if len(en.Enumerators) == 0 {
		return
	}
	env := g.res.Env()
	g.printf("const (\n")
	for _, er := range en.Enumerators {
		g.seen[er.Name] = true
		if v, ok := env[er.Name]; ok {
			g.printf("\t%s %s = %d\n", er.Name, en.Tag, v)
		} else {
			g.printf("\t// %s: value not evaluable: %s\n", er.Name, er.Value.Text())
		}
	}
	g.printf(")\n\n")
}

func (g *Generator) emitTypedef(entry model.Entry) {
	underlying := g.goType(entry.Type)
	if underlying == entry.Name {
		// typedef struct foo foo; aliases itself in Go terms.
		return
	}
	g.printf("type %s = %s\n\n", entry.Name, underlying)
}

// --- functions ---

func (g *Generator) emitFunctions() {
	if len(g.funcs) == 0 {
		return
	}
	g.printf("var (\n")
	for _, entry := range g.funcs {
		fn := entry.Type.(*ctypes.Function)
		g.printf("\t%s func%s\n", entry.Name, g.goSignature(fn))
	}
	g.printf(")\n\n")

	g.printf("// RegisterLib binds every prototype to its symbol in the already\n")
	g.printf("// loaded library handle.\n")
	g.printf("func RegisterLib(lib uintptr) {\n")
	for _, entry := range g.funcs {
		g.printf("\tpurego.RegisterLibFunc(&%s, lib, %q)\n", entry.Name, entry.Name)
	}
	g.printf("}\n\n")
}

func (g *Generator) goSignature(fn *ctypes.Function) string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Name != "" {
			sb.WriteString(p.Name)
			sb.WriteString(" ")
		}
		sb.WriteString(g.goType(p.Type))
	}
	if fn.Variadic {
		if len(fn.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("args ...any")
	}
	sb.WriteString(")")
	ret := g.goReturn(fn.Return)
	if ret != "" {
		sb.WriteString(" ")
		sb.WriteString(ret)
	}
	return sb.String()
}

func (g *Generator) goReturn(t ctypes.CType) string {
	if simple, ok := g.res.Resolve(t).(*ctypes.Simple); ok && simple.Name == "void" && simple.Longs == 0 {
		return ""
	}
	return g.goType(t)
}

// goType maps a C type to its Go spelling under the target profile.
// Typedef names are kept as aliases rather than resolved away.
func (g *Generator) goType(t ctypes.CType) string {
	switch t := t.(type) {
	case *ctypes.TypedefRef:
		return t.Name
	case *ctypes.Simple:
		return g.goScalar(t)
	case *ctypes.Pointer:
		if simple, ok := g.res.Resolve(t.Dest).(*ctypes.Simple); ok {
			switch {
			case simple.Name == "void":
				g.needUnsafe = true
				return "unsafe.Pointer"
			case simple.Name == "char" && simple.Longs == 0:
				return "*byte"
			}
		}
		return "*" + g.goType(t.Dest)
	case *ctypes.Array:
		if t.Count == nil {
			return "*" + g.goType(t.Base)
		}
		n, err := expr.Eval(t.Count, g.res.Env())
		if err != nil {
			return "*" + g.goType(t.Base)
		}
		return fmt.Sprintf("[%d]%s", n, g.goType(t.Base))
	case *ctypes.Struct:
		return t.Tag
	case *ctypes.Enum:
		return t.Tag
	case *ctypes.Function:
		return "func" + g.goSignature(t)
	case *ctypes.Bitfield:
		return g.goType(t.Base)
	}
	return "uintptr"
}

func (g *Generator) goScalar(t *ctypes.Simple) string {
	info, err := g.res.Profile().Scalar(t)
	if err != nil {
		return "uintptr"
	}
	switch t.Name {
	case "void":
		g.needUnsafe = true
		return "unsafe.Pointer"
	case "_Bool":
		return "bool"
	case "float", "double":
		return fmt.Sprintf("float%d", info.Size*8)
	}
	if t.Signed {
		return fmt.Sprintf("int%d", info.Size*8)
	}
	return fmt.Sprintf("uint%d", info.Size*8)
}

// --- expression rendering ---

// goExpr renders an expression as Go source over int64 operands. The
// second result reports whether the text is a Go constant expression; the
// third whether rendering succeeded at all.
func (g *Generator) goExpr(n expr.Node, params map[string]bool) (string, bool, bool) {
	switch n := n.(type) {
	case *expr.Constant:
		if n.IsFloat {
			return fmt.Sprintf("%g", n.FloatValue), true, true
		}
		return fmt.Sprintf("%d", n.Value), true, true
	case *expr.StringLiteral:
		return fmt.Sprintf("%q", n.Value), true, true
	case *expr.Identifier:
		return n.Name, params[n.Name], true
	case *expr.Unary:
		operand, c, ok := g.goExpr(n.Operand, params)
		if !ok {
			return "", false, false
		}
		switch n.Name {
		case "negation":
			return "(-" + operand + ")", c, true
		case "plus":
			return "(+" + operand + ")", c, true
		case "complement":
			return "(^" + operand + ")", c, true
		case "logical-not":
			g.needBtoi = true
			return fmt.Sprintf("btoi(%s == 0)", operand), false, true
		}
		return "", false, false
	case *expr.Binary:
		return g.goBinary(n, params)
	case *expr.Conditional:
		c, _, cok := g.goExpr(n.Cond, params)
		t, _, tok := g.goExpr(n.Then, params)
		e, _, eok := g.goExpr(n.Else, params)
		if !cok || !tok || !eok {
			return "", false, false
		}
		g.needTernary = true
		return fmt.Sprintf("ternary(%s, %s, %s)", c, t, e), false, true
	case *expr.Call:
		parts := make([]string, 0, len(n.Args))
		for _, a := range n.Args {
			text, _, ok := g.goExpr(a, params)
			if !ok {
				return "", false, false
			}
			parts = append(parts, text)
		}
		return fmt.Sprintf("%s(%s)", n.Callee, strings.Join(parts, ", ")), false, true
	}
	return "", false, false
}

var goBinaryOps = map[string]string{
	"addition":       "+",
	"subtraction":    "-",
	"multiplication": "*",
	"division":       "/",
	"modulo":         "%",
	"shift-left":     "<<",
	"shift-right":    ">>",
	"bitwise-and":    "&",
	"bitwise-or":     "|",
	"bitwise-xor":    "^",
	"concatenate":    "+",
}

var goCompareOps = map[string]string{
	"equals":           "==",
	"not-equals":       "!=",
	"less-than":        "<",
	"greater-than":     ">",
	"less-or-equal":    "<=",
	"greater-or-equal": ">=",
}

func (g *Generator) goBinary(n *expr.Binary, params map[string]bool) (string, bool, bool) {
	left, lc, lok := g.goExpr(n.Left, params)
	right, rc, rok := g.goExpr(n.Right, params)
	if !lok || !rok {
		return "", false, false
	}
	if op, ok := goBinaryOps[n.Name]; ok {
		return fmt.Sprintf("(%s %s %s)", left, op, right), lc && rc, true
	}
	if op, ok := goCompareOps[n.Name]; ok {
		g.needBtoi = true
		return fmt.Sprintf("btoi(%s %s %s)", left, op, right), false, true
	}
	switch n.Name {
	case "logical-and":
		g.needBtoi = true
		return fmt.Sprintf("btoi(%s != 0 && %s != 0)", left, right), false, true
	case "logical-or":
		g.needBtoi = true
		return fmt.Sprintf("btoi(%s != 0 || %s != 0)", left, right), false, true
	}
	return "", false, false
}
