// expand.go implements macro expansion: argument substitution,
// stringification, token pasting, and recursive expansion with
// hideset-based cycle suppression.
package cpp

import (
	"fmt"
	"strings"
)

// Expander expands macro invocations in a token stream.
type Expander struct {
	macros  *MacroTable
	hideset map[string]bool // macros currently being expanded
}

// NewExpander creates an expander over the given macro table.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{macros: macros, hideset: make(map[string]bool)}
}

// Expand expands all macro invocations in tokens.
func (e *Expander) Expand(tokens []Token) ([]Token, error) {
	return e.expandTokens(tokens, nil)
}

func (e *Expander) expandTokens(tokens []Token, parentHideset map[string]bool) ([]Token, error) {
	var result []Token
	i := 0

	for i < len(tokens) {
		tok := tokens[i]

		if tok.Kind != KindIdent {
			result = append(result, tok)
			i++
			continue
		}

		macro := e.macros.Lookup(tok.Text)
		if macro == nil {
			result = append(result, tok)
			i++
			continue
		}

		// A name already being expanded is not expanded again. A direct
		// self-reference is additionally recorded against the macro.
		if e.hideset[tok.Text] || (parentHideset != nil && parentHideset[tok.Text]) {
			if e.hideset[tok.Text] {
				msg := fmt.Sprintf("macro %s directly references itself; expansion suppressed", macro.Name)
				if !containsError(macro.Errors, msg) {
					macro.Errors = append(macro.Errors, msg)
				}
			}
			result = append(result, tok)
			i++
			continue
		}

		if macro.Kind == MacroFunction {
			// An invocation needs '(' after the name, whitespace allowed.
			parenIdx := i + 1
			for parenIdx < len(tokens) && tokens[parenIdx].Kind == KindSpace {
				parenIdx++
			}
			if parenIdx >= len(tokens) || tokens[parenIdx].Kind != KindPunct || tokens[parenIdx].Text != "(" {
				result = append(result, tok)
				i++
				continue
			}

			args, endIdx, err := e.parseArguments(tokens, parenIdx, macro)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", tok.Loc.File, tok.Loc.Line, err)
			}
			expanded, err := e.expandFunctionMacro(macro, args, tok.Loc)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
			i = endIdx + 1
			continue
		}

		expanded, err := e.expandObjectMacro(macro, tok.Loc)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded...)
		i++
	}

	return result, nil
}

func containsError(errs []string, msg string) bool {
	for _, e := range errs {
		if e == msg {
			return true
		}
	}
	return false
}

func (e *Expander) expandObjectMacro(macro *Macro, loc SourceLoc) ([]Token, error) {
	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	replacement := make([]Token, len(macro.Replacement))
	for i, tok := range macro.Replacement {
		replacement[i] = tok
		replacement[i].Loc = loc
	}

	replacement, err := e.pasteTokens(replacement)
	if err != nil {
		return nil, err
	}
	return e.expandTokens(replacement, e.hideset)
}

func (e *Expander) expandFunctionMacro(macro *Macro, args [][]Token, loc SourceLoc) ([]Token, error) {
	// Argument tokens come from the call site, not from this macro's
	// replacement list, so they expand before the macro joins the
	// hideset. A nested call of the same macro in argument position is
	// a fresh invocation, not a self-reference.
	expandedArgs := make([][]Token, len(args))
	for i, arg := range args {
		exp, err := e.expandTokens(arg, e.hideset)
		if err != nil {
			return nil, err
		}
		expandedArgs[i] = exp
	}

	e.hideset[macro.Name] = true
	defer delete(e.hideset, macro.Name)

	paramMap := make(map[string][]Token)
	expandedMap := make(map[string][]Token)
	for i, param := range macro.Params {
		if i < len(args) {
			paramMap[param] = args[i]
			expandedMap[param] = expandedArgs[i]
		} else {
			paramMap[param] = nil
			expandedMap[param] = nil
		}
	}
	if macro.IsVariadic {
		paramMap["__VA_ARGS__"] = buildVAArgs(args, len(macro.Params))
		expandedMap["__VA_ARGS__"] = buildVAArgs(expandedArgs, len(macro.Params))
	}

	var result []Token
	replacement := macro.Replacement
	i := 0

	for i < len(replacement) {
		tok := replacement[i]

		// Stringification: # followed by a parameter name.
		if (tok.Kind == KindPunct && tok.Text == "#") || tok.Kind == KindHash {
			nextIdx := i + 1
			for nextIdx < len(replacement) && replacement[nextIdx].Kind == KindSpace {
				nextIdx++
			}
			if nextIdx < len(replacement) && replacement[nextIdx].Kind == KindIdent {
				if paramTokens, ok := paramMap[replacement[nextIdx].Text]; ok {
					result = append(result, stringify(paramTokens, loc))
					i = nextIdx + 1
					continue
				}
			}
		}

		// Parameter substitution.
		if tok.Kind == KindIdent {
			if paramTokens, ok := paramMap[tok.Text]; ok {
				beforePaste := i > 0 && replacement[i-1].Kind == KindHashHash
				afterPaste := i+1 < len(replacement) && replacement[i+1].Kind == KindHashHash

				if beforePaste || afterPaste {
					// Operand of ##: substitute without expanding.
					for _, pt := range paramTokens {
						pt.Loc = loc
						result = append(result, pt)
					}
				} else {
					for _, pt := range expandedMap[tok.Text] {
						pt.Loc = loc
						result = append(result, pt)
					}
				}
				i++
				continue
			}
		}

		newTok := tok
		newTok.Loc = loc
		result = append(result, newTok)
		i++
	}

	result, err := e.pasteTokens(result)
	if err != nil {
		return nil, err
	}
	return e.expandTokens(result, e.hideset)
}

// parseArguments collects the argument token lists of a function-like macro
// invocation. startIdx points at the opening paren; the index of the closing
// paren is returned alongside the arguments.
func (e *Expander) parseArguments(tokens []Token, startIdx int, macro *Macro) ([][]Token, int, error) {
	i := startIdx + 1
	var args [][]Token
	var currentArg []Token
	parenDepth := 1

	for i < len(tokens) {
		tok := tokens[i]
		if tok.Kind == KindPunct {
			switch tok.Text {
			case "(":
				parenDepth++
				currentArg = append(currentArg, tok)
			case ")":
				parenDepth--
				if parenDepth == 0 {
					if len(currentArg) > 0 || len(args) > 0 {
						args = append(args, trimSpace(currentArg))
					}
					if err := validateArgCount(macro, args); err != nil {
						return nil, 0, err
					}
					return args, i, nil
				}
				currentArg = append(currentArg, tok)
			case ",":
				if parenDepth == 1 {
					args = append(args, trimSpace(currentArg))
					currentArg = nil
				} else {
					currentArg = append(currentArg, tok)
				}
			default:
				currentArg = append(currentArg, tok)
			}
		} else {
			currentArg = append(currentArg, tok)
		}
		i++
	}
	return nil, 0, fmt.Errorf("unterminated argument list for macro %s", macro.Name)
}

// validateArgCount enforces the arity contract. A mismatch makes further
// tokenization ambiguous, so it is a run-fatal error.
func validateArgCount(macro *Macro, args [][]Token) error {
	expected := len(macro.Params)
	if macro.IsVariadic {
		if len(args) < expected {
			return fmt.Errorf("macro %s requires at least %d arguments, got %d",
				macro.Name, expected, len(args))
		}
		return nil
	}
	if len(args) != expected {
		return fmt.Errorf("macro %s requires %d arguments, got %d",
			macro.Name, expected, len(args))
	}
	return nil
}

func buildVAArgs(args [][]Token, numParams int) []Token {
	if len(args) <= numParams {
		return nil
	}
	var result []Token
	for i, arg := range args[numParams:] {
		if i > 0 {
			result = append(result,
				Token{Kind: KindPunct, Text: ","},
				Token{Kind: KindSpace, Text: " "})
		}
		result = append(result, arg...)
	}
	return result
}

// stringify converts tokens to a string literal (the # operator).
// Interior whitespace collapses to single spaces.
func stringify(tokens []Token, loc SourceLoc) Token {
	var sb strings.Builder
	sb.WriteByte('"')

	lastWasSpace := true
	for _, tok := range tokens {
		if tok.Kind == KindSpace || tok.Kind == KindNewline {
			if !lastWasSpace {
				sb.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		lastWasSpace = false

		if tok.Kind == KindString || tok.Kind == KindChar {
			for _, c := range tok.Text {
				if c == '"' || c == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(c)
			}
		} else {
			sb.WriteString(tok.Text)
		}
	}

	str := strings.TrimSuffix(sb.String(), " ") + "\""
	return Token{Kind: KindString, Text: str, Loc: loc}
}

// pasteTokens applies the ## operator.
func (e *Expander) pasteTokens(tokens []Token) ([]Token, error) {
	var result []Token
	i := 0

	for i < len(tokens) {
		tok := tokens[i]
		if tok.Kind != KindHashHash {
			result = append(result, tok)
			i++
			continue
		}

		if len(result) == 0 {
			return nil, fmt.Errorf("## cannot appear at start of replacement list")
		}
		nextIdx := i + 1
		for nextIdx < len(tokens) && tokens[nextIdx].Kind == KindSpace {
			nextIdx++
		}
		if nextIdx >= len(tokens) {
			return nil, fmt.Errorf("## cannot appear at end of replacement list")
		}

		// Drop trailing whitespace left of ##.
		for len(result) > 0 && result[len(result)-1].Kind == KindSpace {
			result = result[:len(result)-1]
		}
		if len(result) == 0 {
			return nil, fmt.Errorf("## cannot appear at start of replacement list")
		}

		leftTok := result[len(result)-1]
		rightTok := tokens[nextIdx]
		result = result[:len(result)-1]

		switch {
		case leftTok.Kind == KindPlaceholder:
			result = append(result, rightTok)
		case rightTok.Kind == KindPlaceholder:
			result = append(result, leftTok)
		default:
			pasted := retokenize(leftTok.Text+rightTok.Text, leftTok.Loc)
			if len(pasted) == 0 {
				result = append(result, Token{Kind: KindPlaceholder, Loc: leftTok.Loc})
			} else {
				result = append(result, pasted...)
			}
		}
		i = nextIdx + 1
	}

	var filtered []Token
	for _, tok := range result {
		if tok.Kind != KindPlaceholder {
			filtered = append(filtered, tok)
		}
	}
	return filtered, nil
}

// retokenize lexes a pasted token spelling.
func retokenize(text string, loc SourceLoc) []Token {
	if text == "" {
		return nil
	}
	lex := NewLexer(text, loc.File)
	var tokens []Token
	for {
		tok := lex.NextToken()
		if tok.Kind == KindEOF || tok.Kind == KindNewline {
			return tokens
		}
		if tok.Kind != KindSpace {
			tok.Loc = loc
			tokens = append(tokens, tok)
		}
	}
}
