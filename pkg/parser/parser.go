// Package parser implements a recursive descent parser for C declarations
// over a macro-expanded token stream. A syntax error is recorded against
// the offending declaration node and parsing resumes at the next plausible
// declaration boundary; one bad declaration never aborts the header.
package parser

import (
	"fmt"

	"github.com/raymyers/cbind/pkg/cpp"
	"github.com/raymyers/cbind/pkg/ctypes"
	"github.com/raymyers/cbind/pkg/expr"
)

// Parser parses declarations from preprocessing tokens.
type Parser struct {
	tokens   []cpp.Token
	pos      int
	typedefs map[string]bool
	shadows  []map[string]bool // innermost scope last
	tags     *TagCounter
}

// New creates a parser over the given token stream. Whitespace and newline
// tokens are dropped; everything else is kept. The tag counter is threaded
// in from the parse-run context so anonymous names stay deterministic.
func New(tokens []cpp.Token, tags *TagCounter) *Parser {
	var filtered []cpp.Token
	for _, tok := range tokens {
		if tok.Kind != cpp.KindSpace && tok.Kind != cpp.KindNewline {
			filtered = append(filtered, tok)
		}
	}
	return &Parser{
		tokens:   filtered,
		typedefs: make(map[string]bool),
		tags:     tags,
	}
}

// DefineTypedef pre-registers a typedef name, letting a later header in the
// same session reference types from an earlier one.
func (p *Parser) DefineTypedef(name string) {
	p.typedefs[name] = true
}

// ParseHeader parses all top-level declarations.
func (p *Parser) ParseHeader() []Decl {
	var decls []Decl
	for !p.atEOF() {
		if p.isPunct(";") {
			p.next()
			continue
		}
		decls = append(decls, p.parseDeclaration()...)
	}
	return decls
}

// --- token plumbing ---

func (p *Parser) cur() cpp.Token {
	if p.pos >= len(p.tokens) {
		return cpp.Token{Kind: cpp.KindEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() cpp.Token {
	if p.pos+1 >= len(p.tokens) {
		return cpp.Token{Kind: cpp.KindEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) next() cpp.Token {
	tok := p.cur()
	p.pos++
	return tok
}

func (p *Parser) atEOF() bool { return p.pos >= len(p.tokens) }

func (p *Parser) isPunct(text string) bool {
	tok := p.cur()
	return (tok.Kind == cpp.KindPunct || tok.Kind == cpp.KindHash) && tok.Text == text
}

func (p *Parser) isIdent(text string) bool {
	tok := p.cur()
	return tok.Kind == cpp.KindIdent && tok.Text == text
}

func (p *Parser) expectPunct(text string) error {
	if p.isPunct(text) {
		p.next()
		return nil
	}
	return fmt.Errorf("line %d: expected %q, got %q", p.cur().Loc.Line, text, p.cur().Text)
}

func (p *Parser) loc() ctypes.SourceLoc {
	tok := p.cur()
	return ctypes.SourceLoc{File: tok.Loc.File, Line: tok.Loc.Line}
}

// recover skips to the next declaration boundary: a ';' at brace depth
// zero, or the ';' after a balanced '{...}'.
func (p *Parser) recover() {
	depth := 0
	for !p.atEOF() {
		switch {
		case p.isPunct("{"):
			depth++
		case p.isPunct("}"):
			if depth > 0 {
				depth--
			}
		case p.isPunct(";"):
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

// --- scoping ---

func (p *Parser) pushScope() {
	p.shadows = append(p.shadows, make(map[string]bool))
}

func (p *Parser) popScope() {
	p.shadows = p.shadows[:len(p.shadows)-1]
}

func (p *Parser) declareName(name string) {
	if len(p.shadows) > 0 {
		p.shadows[len(p.shadows)-1][name] = true
	}
}

// isTypedefName reports whether name currently denotes a type. A member
// name declared in an enclosing aggregate scope shadows an outer typedef.
func (p *Parser) isTypedefName(name string) bool {
	for i := len(p.shadows) - 1; i >= 0; i-- {
		if p.shadows[i][name] {
			return false
		}
	}
	return p.typedefs[name]
}

// --- declarations ---

func (p *Parser) parseDeclaration() []Decl {
	src := p.loc()
	spec, err := p.parseDeclSpecifiers()
	if err != nil {
		bad := &BadDecl{Src: src}
		bad.AddError(err.Error())
		p.recover()
		return []Decl{bad}
	}

	var decls []Decl
	if spec.structDef != nil {
		decls = append(decls, &StructDecl{Def: spec.structDef, Src: spec.structDef.Src})
	}
	if spec.enumDef != nil {
		decls = append(decls, &EnumDecl{Def: spec.enumDef, Src: spec.enumDef.Src})
	}

	// Definition or forward declaration with no declarators.
	if p.isPunct(";") {
		p.next()
		if len(decls) == 0 {
			switch t := spec.base.(type) {
			case *ctypes.Struct:
				decls = append(decls, &StructDecl{Def: t, Src: t.Src})
			case *ctypes.Enum:
				decls = append(decls, &EnumDecl{Def: t, Src: t.Src})
			}
		}
		return decls
	}

	for {
		name, typ, err := p.parseDeclarator(spec.base)
		if err != nil {
			bad := &BadDecl{Src: src}
			bad.AddError(err.Error())
			p.recover()
			return append(decls, bad)
		}

		switch {
		case spec.isTypedef:
			if name == "" {
				bad := &BadDecl{Src: src}
				bad.AddError(fmt.Sprintf("line %d: typedef requires a name", src.Line))
				decls = append(decls, bad)
				break
			}
			p.typedefs[name] = true
			decls = append(decls, &TypedefDecl{Name: name, Type: typ, Src: src})
		default:
			if fn, ok := typ.(*ctypes.Function); ok {
				decls = append(decls, &FunctionDecl{Name: name, Type: fn, Src: src})
				break
			}
			v := &VariableDecl{Name: name, Type: typ, Src: src}
			if p.isPunct("=") {
				p.next()
				init, err := p.parseConstantExpression()
				if err != nil {
					v.AddError(err.Error())
					p.skipInitializer()
				} else {
					v.Init = init
				}
			}
			decls = append(decls, v)
		}

		if p.isPunct(",") {
			p.next()
			continue
		}
		if err := p.expectPunct(";"); err != nil {
			last := decls[len(decls)-1]
			last.AddError(err.Error())
			p.recover()
		}
		return decls
	}
}

// skipInitializer advances past a malformed initializer to ',' or ';'.
func (p *Parser) skipInitializer() {
	depth := 0
	for !p.atEOF() {
		switch {
		case p.isPunct("{"), p.isPunct("("):
			depth++
		case p.isPunct("}"), p.isPunct(")"):
			depth--
		case p.isPunct(",") || p.isPunct(";"):
			if depth <= 0 {
				return
			}
		}
		p.next()
	}
}

// specInfo is the result of parsing declaration specifiers.
type specInfo struct {
	base      ctypes.CType
	isTypedef bool
	structDef *ctypes.Struct // set when the specifier defined or forward-declared an aggregate
	enumDef   *ctypes.Enum
}

func (p *Parser) parseDeclSpecifiers() (specInfo, error) {
	var spec specInfo
	var (
		sawType  bool
		baseName string
		longs    int
		short    bool
		signed   bool = true
		sawSign  bool
		packed   bool
	)

	for {
		tok := p.cur()
		if tok.Kind != cpp.KindIdent {
			break
		}
		switch tok.Text {
		case "typedef":
			spec.isTypedef = true
			p.next()
		case "extern", "static", "auto", "register", "inline", "_Noreturn":
			p.next()
		case "const", "volatile", "restrict", "__const", "__restrict", "__restrict__", "__volatile__":
			p.next()
		case "__attribute__", "__attribute":
			attrPacked, err := p.parseAttribute()
			if err != nil {
				return spec, err
			}
			packed = packed || attrPacked
		case "struct", "union":
			variety := tok.Text
			p.next()
			def, err := p.parseStructSpecifier(variety, packed)
			if err != nil {
				return spec, err
			}
			if def.Opaque {
				spec.base = def
			} else {
				spec.structDef = def
				spec.base = def
			}
			sawType = true
		case "enum":
			p.next()
			def, err := p.parseEnumSpecifier()
			if err != nil {
				return spec, err
			}
			if def.Opaque {
				spec.base = def
			} else {
				spec.enumDef = def
				spec.base = def
			}
			sawType = true
		case "void", "char", "int", "float", "double", "_Bool":
			if baseName != "" {
				return spec, fmt.Errorf("line %d: duplicate type specifier %q", tok.Loc.Line, tok.Text)
			}
			baseName = tok.Text
			sawType = true
			p.next()
		case "short":
			short = true
			sawType = true
			p.next()
		case "long":
			longs++
			sawType = true
			p.next()
		case "signed", "__signed__":
			sawSign = true
			signed = true
			sawType = true
			p.next()
		case "unsigned":
			sawSign = true
			signed = false
			sawType = true
			p.next()
		default:
			// A typedef name is only a type specifier when no other type
			// specifier was seen, so a member may reuse the name.
			if !sawType && p.isTypedefName(tok.Text) {
				spec.base = &ctypes.TypedefRef{Name: tok.Text}
				sawType = true
				p.next()
				continue
			}
			goto done
		}
	}
done:
	if spec.base == nil {
		if !sawType && !sawSign && !short && longs == 0 {
			return spec, fmt.Errorf("line %d: expected declaration specifier, got %q",
				p.cur().Loc.Line, p.cur().Text)
		}
		if baseName == "" {
			if short {
				baseName = "short"
			} else {
				baseName = "int"
			}
		} else if baseName == "int" && short {
			baseName = "short"
		}
		spec.base = &ctypes.Simple{Name: baseName, Signed: signed, Longs: longs}
	}
	return spec, nil
}

// parseAttribute consumes __attribute__((...)) and reports whether it
// contained a packing annotation.
func (p *Parser) parseAttribute() (bool, error) {
	p.next() // __attribute__
	if err := p.expectPunct("("); err != nil {
		return false, err
	}
	if err := p.expectPunct("("); err != nil {
		return false, err
	}
	packed := false
	depth := 2
	for !p.atEOF() && depth > 0 {
		switch {
		case p.isPunct("("):
			depth++
		case p.isPunct(")"):
			depth--
		case p.cur().Kind == cpp.KindIdent:
			switch p.cur().Text {
			case "packed", "__packed__":
				packed = true
			}
		}
		p.next()
	}
	if depth > 0 {
		return packed, fmt.Errorf("unterminated __attribute__")
	}
	return packed, nil
}

func (p *Parser) parseStructSpecifier(variety string, packed bool) (*ctypes.Struct, error) {
	src := p.loc()

	if p.isIdent("__attribute__") || p.isIdent("__attribute") {
		attrPacked, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		packed = packed || attrPacked
	}

	tag := ""
	if p.cur().Kind == cpp.KindIdent && !isKeyword(p.cur().Text) {
		tag = p.next().Text
	}

	if !p.isPunct("{") {
		if tag == "" {
			return nil, fmt.Errorf("line %d: expected tag or body after %q", src.Line, variety)
		}
		return &ctypes.Struct{Tag: tag, Variety: variety, Opaque: true, Src: src}, nil
	}

	n := p.tags.Tick()
	anonymous := false
	if tag == "" {
		tag = fmt.Sprintf("anon_%d", n)
		anonymous = true
	}

	def := &ctypes.Struct{
		Tag:       tag,
		Variety:   variety,
		Packed:    packed,
		Anonymous: anonymous,
		Src:       src,
	}
	if err := p.parseStructBody(def); err != nil {
		return nil, err
	}

	// GCC also accepts the attribute after the closing brace.
	if p.isIdent("__attribute__") || p.isIdent("__attribute") {
		attrPacked, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		def.Packed = def.Packed || attrPacked
	}
	return def, nil
}

func (p *Parser) parseStructBody(def *ctypes.Struct) error {
	p.next() // '{'
	p.pushScope()
	defer p.popScope()

	for !p.isPunct("}") && !p.atEOF() {
		spec, err := p.parseDeclSpecifiers()
		if err != nil {
			def.AddError(err.Error())
			p.recover()
			continue
		}

		// Tagless aggregate with no declarators: an anonymous member.
		if p.isPunct(";") {
			p.next()
			def.Members = append(def.Members, ctypes.Member{Type: spec.base})
			continue
		}

		for {
			var member ctypes.Member
			if p.isPunct(":") {
				// Unnamed bitfield: occupies storage, no visible name.
				p.next()
				width, err := p.parseConstantExpression()
				if err != nil {
					def.AddError(err.Error())
					p.recover()
					break
				}
				member = ctypes.Member{Type: &ctypes.Bitfield{Base: spec.base, Width: width}}
			} else {
				name, typ, err := p.parseDeclarator(spec.base)
				if err != nil {
					def.AddError(err.Error())
					p.recover()
					break
				}
				if p.isPunct(":") {
					p.next()
					width, err := p.parseConstantExpression()
					if err != nil {
						def.AddError(err.Error())
						p.recover()
						break
					}
					typ = &ctypes.Bitfield{Base: typ, Width: width}
				}
				member = ctypes.Member{Name: name, Type: typ}
				p.declareName(name)
			}
			def.Members = append(def.Members, member)

			if p.isPunct(",") {
				p.next()
				continue
			}
			if err := p.expectPunct(";"); err != nil {
				def.AddError(err.Error())
				p.recover()
			}
			break
		}
	}
	if p.atEOF() {
		return fmt.Errorf("line %d: unterminated %s body", def.Src.Line, def.Variety)
	}
	p.next() // '}'
	return nil
}

func (p *Parser) parseEnumSpecifier() (*ctypes.Enum, error) {
	src := p.loc()

	tag := ""
	if p.cur().Kind == cpp.KindIdent && !isKeyword(p.cur().Text) {
		tag = p.next().Text
	}

	if !p.isPunct("{") {
		if tag == "" {
			return nil, fmt.Errorf("line %d: expected tag or body after \"enum\"", src.Line)
		}
		return &ctypes.Enum{Tag: tag, Opaque: true, Src: src}, nil
	}

	n := p.tags.Tick()
	anonymous := false
	if tag == "" {
		tag = fmt.Sprintf("anon_%d", n)
		anonymous = true
	}
	def := &ctypes.Enum{Tag: tag, Anonymous: anonymous, Src: src}

	p.next() // '{'
	prev := ""
	for !p.isPunct("}") && !p.atEOF() {
		if p.cur().Kind != cpp.KindIdent {
			def.AddError(fmt.Sprintf("line %d: expected enumerator name, got %q",
				p.cur().Loc.Line, p.cur().Text))
			p.recover()
			return def, nil
		}
		name := p.next().Text

		var value expr.Node
		if p.isPunct("=") {
			p.next()
			v, err := p.parseConstantExpression()
			if err != nil {
				value = &expr.Constant{}
				value.AddError(err.Error())
				p.skipInitializer()
			} else {
				value = v
			}
		} else if prev == "" {
			value = expr.NewConstant(0)
		} else {
			// Kept symbolic: the predecessor may itself come from a macro
			// or dependent expression.
			value = &expr.Binary{
				Name:   "addition",
				Format: "(%s + %s)",
				Left:   &expr.Identifier{Name: prev},
				Right:  expr.NewConstant(1),
			}
		}
		def.Enumerators = append(def.Enumerators, ctypes.Enumerator{Name: name, Value: value})
		prev = name

		if p.isPunct(",") {
			p.next()
		}
	}
	if p.atEOF() {
		return nil, fmt.Errorf("line %d: unterminated enum body", src.Line)
	}
	p.next() // '}'
	return def, nil
}

// parseDeclarator parses pointer, array, and function declarators around an
// optional name. An absent name (abstract declarator) is allowed; callers
// that need a name check for it.
func (p *Parser) parseDeclarator(base ctypes.CType) (string, ctypes.CType, error) {
	for p.isPunct("*") {
		p.next()
		for p.cur().Kind == cpp.KindIdent && isQualifier(p.cur().Text) {
			p.next()
		}
		base = &ctypes.Pointer{Dest: base}
	}

	// Grouped pointer-to-function declarator: ( * name ) ( params )
	if p.isPunct("(") && p.peek().Kind == cpp.KindPunct && p.peek().Text == "*" {
		p.next() // '('
		stars := 0
		for p.isPunct("*") {
			p.next()
			stars++
		}
		name := ""
		if p.cur().Kind == cpp.KindIdent && !isKeyword(p.cur().Text) {
			name = p.next().Text
		}
		if err := p.expectPunct(")"); err != nil {
			return "", nil, err
		}
		if !p.isPunct("(") {
			// Plain grouped pointer declarator.
			typ := base
			for i := 0; i < stars; i++ {
				typ = &ctypes.Pointer{Dest: typ}
			}
			return name, typ, nil
		}
		p.next() // '('
		params, variadic, err := p.parseParamList()
		if err != nil {
			return "", nil, err
		}
		var typ ctypes.CType = &ctypes.Function{Return: base, Params: params, Variadic: variadic}
		for i := 0; i < stars; i++ {
			typ = &ctypes.Pointer{Dest: typ}
		}
		return name, typ, nil
	}

	name := ""
	if p.cur().Kind == cpp.KindIdent && !isKeyword(p.cur().Text) {
		name = p.next().Text
	}

	// Function suffix.
	if p.isPunct("(") {
		p.next()
		params, variadic, err := p.parseParamList()
		if err != nil {
			return "", nil, err
		}
		return name, &ctypes.Function{Return: base, Params: params, Variadic: variadic}, nil
	}

	// Array suffixes: the first dimension is outermost.
	var dims []expr.Node
	for p.isPunct("[") {
		p.next()
		if p.isPunct("]") {
			p.next()
			dims = append(dims, nil)
			continue
		}
		count, err := p.parseConstantExpression()
		if err != nil {
			return "", nil, err
		}
		if err := p.expectPunct("]"); err != nil {
			return "", nil, err
		}
		dims = append(dims, count)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		base = &ctypes.Array{Base: base, Count: dims[i]}
	}
	return name, base, nil
}

// parseParamList parses a prototype parameter list; the opening paren is
// already consumed. It consumes the closing paren.
func (p *Parser) parseParamList() ([]ctypes.Parameter, bool, error) {
	if p.isPunct(")") {
		p.next()
		return nil, false, nil
	}
	// (void) means no parameters.
	if p.isIdent("void") && p.peek().Kind == cpp.KindPunct && p.peek().Text == ")" {
		p.next()
		p.next()
		return nil, false, nil
	}

	var params []ctypes.Parameter
	variadic := false
	for {
		if p.isPunct("...") {
			variadic = true
			p.next()
			break
		}
		spec, err := p.parseDeclSpecifiers()
		if err != nil {
			return nil, false, err
		}
		name, typ, err := p.parseDeclarator(spec.base)
		if err != nil {
			return nil, false, err
		}
		params = append(params, ctypes.Parameter{Name: name, Type: typ})

		if p.isPunct(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, false, err
	}
	return params, variadic, nil
}

var keywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true,
	"else": true, "enum": true, "extern": true, "float": true, "for": true,
	"goto": true, "if": true, "inline": true, "int": true, "long": true,
	"register": true, "restrict": true, "return": true, "short": true,
	"signed": true, "sizeof": true, "static": true, "struct": true,
	"switch": true, "typedef": true, "union": true, "unsigned": true,
	"void": true, "volatile": true, "while": true, "_Bool": true,
}

func isKeyword(s string) bool { return keywords[s] }

func isQualifier(s string) bool {
	switch s {
	case "const", "volatile", "restrict", "__const", "__restrict", "__restrict__":
		return true
	}
	return false
}
