// macro.go defines macros and the macro table.
package cpp

import (
	"fmt"
	"sort"
)

// MacroKind distinguishes object-like from function-like macros.
type MacroKind int

const (
	MacroObject MacroKind = iota
	MacroFunction
)

// Macro is one entry in the macro table. Redefinition replaces the entry
// but keeps its original position in definition order.
type Macro struct {
	Name        string
	Kind        MacroKind
	Params      []string // nil for object-like macros
	IsVariadic  bool
	Replacement []Token
	Loc         SourceLoc
	Errors      []string // per-macro diagnostics, e.g. self-referential expansion
}

// Body returns the replacement list as source text.
func (m *Macro) Body() string {
	return TokensToString(trimSpace(m.Replacement))
}

// MacroTable owns all macro definitions for one parse run.
// Definition order is preserved for deterministic emission.
type MacroTable struct {
	macros map[string]*Macro
	order  []string
}

// NewMacroTable creates an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Define adds a macro, replacing any prior definition of the same name.
func (t *MacroTable) Define(m *Macro) {
	if _, exists := t.macros[m.Name]; !exists {
		t.order = append(t.order, m.Name)
	}
	t.macros[m.Name] = m
}

// DefineObject defines an object-like macro from a body string.
// It is used to seed the table with predefined compiler macros.
func (t *MacroTable) DefineObject(name, body string, loc SourceLoc) {
	lex := NewLexer(body, loc.File)
	t.Define(&Macro{
		Name:        name,
		Kind:        MacroObject,
		Replacement: stripNewlines(lex.AllTokens()),
		Loc:         loc,
	})
}

// Seed applies a name to body map of predefined macros in sorted name order.
func (t *MacroTable) Seed(defs map[string]string) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.DefineObject(name, defs[name], SourceLoc{File: "<predefined>", Line: 1})
	}
}

// Lookup returns the macro with the given name, or nil.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.macros[name]
}

// IsDefined reports whether name is currently defined.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// Undefine removes a macro. Undefining an unknown name is not an error.
func (t *MacroTable) Undefine(name string) {
	if _, ok := t.macros[name]; !ok {
		return
	}
	delete(t.macros, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Names returns macro names in definition order.
func (t *MacroTable) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// DefineFromTokens parses a #define directive body (the tokens after the
// "define" keyword) and installs the macro.
func (t *MacroTable) DefineFromTokens(tokens []Token, loc SourceLoc) error {
	tokens = trimSpace(stripNewlines(tokens))
	if len(tokens) == 0 || tokens[0].Kind != KindIdent {
		return fmt.Errorf("#define requires a macro name")
	}
	name := tokens[0].Text

	m := &Macro{Name: name, Kind: MacroObject, Loc: loc}

	rest := tokens[1:]
	// A parameter list only exists when '(' immediately follows the name,
	// with no intervening whitespace.
	if len(rest) > 0 && rest[0].Kind == KindPunct && rest[0].Text == "(" {
		params, variadic, bodyStart, err := parseParamList(rest)
		if err != nil {
			return fmt.Errorf("macro %s: %w", name, err)
		}
		m.Kind = MacroFunction
		m.Params = params
		m.IsVariadic = variadic
		rest = rest[bodyStart:]
	}

	m.Replacement = trimSpace(rest)
	t.Define(m)
	return nil
}

// parseParamList parses "(a, b, ...)" starting at tokens[0] == "(".
// It returns the parameter names, the variadic flag, and the index of the
// first body token.
func parseParamList(tokens []Token) ([]string, bool, int, error) {
	params := []string{}
	variadic := false
	i := 1
	expectName := true
	for i < len(tokens) {
		tok := tokens[i]
		switch {
		case tok.Kind == KindSpace:
			i++
		case tok.Kind == KindPunct && tok.Text == ")":
			return params, variadic, i + 1, nil
		case tok.Kind == KindPunct && tok.Text == ",":
			if expectName {
				return nil, false, 0, fmt.Errorf("unexpected ',' in parameter list")
			}
			expectName = true
			i++
		case tok.Kind == KindPunct && tok.Text == "...":
			variadic = true
			expectName = false
			i++
		case tok.Kind == KindIdent:
			if !expectName {
				return nil, false, 0, fmt.Errorf("unexpected identifier %q in parameter list", tok.Text)
			}
			params = append(params, tok.Text)
			expectName = false
			i++
		default:
			return nil, false, 0, fmt.Errorf("unexpected token %q in parameter list", tok.Text)
		}
	}
	return nil, false, 0, fmt.Errorf("unterminated parameter list")
}

func stripNewlines(tokens []Token) []Token {
	var out []Token
	for _, tok := range tokens {
		if tok.Kind != KindNewline {
			out = append(out, tok)
		}
	}
	return out
}

func trimSpace(tokens []Token) []Token {
	start := 0
	for start < len(tokens) && tokens[start].Kind == KindSpace {
		start++
	}
	end := len(tokens)
	for end > start && tokens[end-1].Kind == KindSpace {
		end--
	}
	if start >= end {
		return nil
	}
	return tokens[start:end]
}
