// process.go drives directive handling and expansion over whole headers.
package cpp

import (
	"fmt"
)

// Processor consumes pre-include-expanded header text, maintains the macro
// table, and produces a fully macro-expanded token stream.
type Processor struct {
	macros   *MacroTable
	expander *Expander
	warnings []string
}

// NewProcessor creates a processor over the given macro table. The table may
// be pre-seeded with predefined compiler macros.
func NewProcessor(macros *MacroTable) *Processor {
	return &Processor{
		macros:   macros,
		expander: NewExpander(macros),
	}
}

// Macros returns the processor's macro table.
func (p *Processor) Macros() *MacroTable {
	return p.macros
}

// Warnings returns diagnostics for directives that were skipped.
func (p *Processor) Warnings() []string {
	return p.warnings
}

// Process expands all macro invocations in source and returns the resulting
// token stream, with directive lines consumed. Errors returned here are
// run-fatal: they indicate macro table state in which further tokenization
// would be ambiguous.
func (p *Processor) Process(source, filename string) ([]Token, error) {
	lex := NewLexer(source, filename)
	var output []Token
	var lineTokens []Token

	flush := func() error {
		if len(lineTokens) == 0 {
			return nil
		}
		expanded, err := p.processLine(lineTokens, filename)
		if err != nil {
			return err
		}
		output = append(output, expanded...)
		lineTokens = nil
		return nil
	}

	for {
		tok := lex.NextToken()
		if tok.Kind == KindEOF {
			if err := flush(); err != nil {
				return nil, err
			}
			return output, nil
		}
		lineTokens = append(lineTokens, tok)
		if tok.Kind == KindNewline {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Processor) processLine(tokens []Token, filename string) ([]Token, error) {
	first := 0
	for first < len(tokens) && tokens[first].Kind == KindSpace {
		first++
	}
	if first < len(tokens) && tokens[first].Kind == KindHash {
		return nil, p.processDirective(tokens[first:], filename)
	}
	expanded, err := p.expander.Expand(tokens)
	if err != nil {
		return nil, err
	}
	return expanded, nil
}

func (p *Processor) processDirective(tokens []Token, filename string) error {
	loc := tokens[0].Loc
	rest := trimSpace(tokens[1:])
	rest = stripNewlines(rest)
	if len(rest) == 0 {
		return nil // null directive
	}
	if rest[0].Kind != KindIdent {
		// GCC-style linemarkers ("# 1 \"file\"") pass through silently.
		if rest[0].Kind == KindNumber {
			return nil
		}
		p.warn(loc, "malformed directive")
		return nil
	}

	name := rest[0].Text
	body := trimSpace(rest[1:])

	switch name {
	case "define":
		if err := p.macros.DefineFromTokens(body, loc); err != nil {
			return fmt.Errorf("%s:%d: %w", loc.File, loc.Line, err)
		}
	case "undef":
		if len(body) == 0 || body[0].Kind != KindIdent {
			p.warn(loc, "#undef requires a macro name")
			return nil
		}
		p.macros.Undefine(body[0].Text)
	case "include", "include_next", "import":
		// Input is expected to be pre-expanded by the external collaborator.
		p.warn(loc, "#"+name+" ignored: input must be pre-expanded")
	case "if", "ifdef", "ifndef", "elif", "else", "endif", "pragma", "line", "error", "warning":
		p.warn(loc, "#"+name+" ignored")
	default:
		p.warn(loc, "unknown directive #"+name)
	}
	return nil
}

func (p *Processor) warn(loc SourceLoc, msg string) {
	p.warnings = append(p.warnings, fmt.Sprintf("%s:%d: %s", loc.File, loc.Line, msg))
}
