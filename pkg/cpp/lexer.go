// Package cpp implements the macro side of the C preprocessor for header
// text that has already had its #include graph expanded. It tokenizes the
// source, maintains the macro table, and performs macro expansion.
package cpp

import (
	"strings"
	"unicode"
)

// Kind classifies a preprocessing token.
type Kind int

const (
	KindEOF Kind = iota
	KindIdent
	KindNumber
	KindChar
	KindString
	KindPunct
	KindHash        // # at line start (directive marker)
	KindHashHash    // ## (token pasting)
	KindNewline     // significant for directive boundaries
	KindSpace       // preserved for macro spacing
	KindPlaceholder // empty marker used during token pasting
)

func (k Kind) String() string {
	names := []string{
		"EOF", "IDENT", "NUMBER", "CHAR", "STRING", "PUNCT",
		"HASH", "HASHHASH", "NEWLINE", "SPACE", "PLACEHOLDER",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "UNKNOWN"
}

// SourceLoc is a position in the header text.
type SourceLoc struct {
	File string
	Line int
}

// Token is a preprocessing token. Tokens are immutable once produced.
type Token struct {
	Kind Kind
	Text string
	Loc  SourceLoc
}

// Lexer tokenizes header text into preprocessing tokens.
type Lexer struct {
	input    string
	pos      int
	line     int
	filename string
	atBOL    bool // at beginning of line, for directive detection
}

// NewLexer creates a lexer over the given header text.
func NewLexer(input, filename string) *Lexer {
	return &Lexer{input: input, line: 1, filename: filename, atBOL: true}
}

// NextToken returns the next preprocessing token.
func (l *Lexer) NextToken() Token {
	l.skipLineContinuations()

	if l.pos >= len(l.input) {
		return Token{Kind: KindEOF, Loc: l.loc()}
	}

	if l.peek() == '\n' {
		tok := Token{Kind: KindNewline, Text: "\n", Loc: l.loc()}
		l.advance()
		l.atBOL = true
		return tok
	}

	if isSpace(l.peek()) {
		return l.scanSpace()
	}

	// Comments count as a single space per the C standard.
	if l.peek() == '/' && l.pos+1 < len(l.input) {
		if l.input[l.pos+1] == '/' {
			return l.scanLineComment()
		}
		if l.input[l.pos+1] == '*' {
			return l.scanBlockComment()
		}
	}

	if l.peek() == '#' && l.atBOL {
		loc := l.loc()
		l.advance()
		l.atBOL = false
		return Token{Kind: KindHash, Text: "#", Loc: loc}
	}

	l.atBOL = false

	if l.peek() == '#' {
		loc := l.loc()
		l.advance()
		if l.peek() == '#' {
			l.advance()
			return Token{Kind: KindHashHash, Text: "##", Loc: loc}
		}
		return Token{Kind: KindPunct, Text: "#", Loc: loc}
	}

	switch {
	case l.peek() == '"':
		return l.scanString()
	case l.peek() == '\'':
		return l.scanChar()
	case isDigit(l.peek()), l.peek() == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.scanNumber()
	case isIdentStart(l.peek()):
		return l.scanIdent()
	}
	return l.scanPunct()
}

// AllTokens drains the lexer, excluding the trailing EOF token.
func (l *Lexer) AllTokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Kind == KindEOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func (l *Lexer) skipLineContinuations() {
	for l.pos < len(l.input)-1 && l.input[l.pos] == '\\' && l.input[l.pos+1] == '\n' {
		l.pos += 2
		l.line++
	}
}

func (l *Lexer) loc() SourceLoc {
	return SourceLoc{File: l.filename, Line: l.line}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
		}
		l.pos++
	}
}

func (l *Lexer) scanSpace() Token {
	loc := l.loc()
	start := l.pos
	for l.pos < len(l.input) && isSpace(l.peek()) {
		l.advance()
	}
	return Token{Kind: KindSpace, Text: l.input[start:l.pos], Loc: loc}
}

func (l *Lexer) scanLineComment() Token {
	loc := l.loc()
	for l.pos < len(l.input) && l.peek() != '\n' {
		l.advance()
	}
	return Token{Kind: KindSpace, Text: " ", Loc: loc}
}

func (l *Lexer) scanBlockComment() Token {
	loc := l.loc()
	l.advance()
	l.advance()
	for l.pos < len(l.input) {
		if l.peek() == '*' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
			l.advance()
			l.advance()
			break
		}
		l.advance()
	}
	return Token{Kind: KindSpace, Text: " ", Loc: loc}
}

func (l *Lexer) scanString() Token {
	loc := l.loc()
	start := l.pos
	l.advance() // opening quote
	for l.pos < len(l.input) {
		if l.peek() == '"' {
			l.advance()
			break
		}
		if l.peek() == '\\' && l.pos+1 < len(l.input) {
			l.advance()
		}
		if l.peek() == '\n' {
			break // unterminated
		}
		l.advance()
	}
	return Token{Kind: KindString, Text: l.input[start:l.pos], Loc: loc}
}

func (l *Lexer) scanChar() Token {
	loc := l.loc()
	start := l.pos
	l.advance() // opening quote
	for l.pos < len(l.input) {
		if l.peek() == '\'' {
			l.advance()
			break
		}
		if l.peek() == '\\' && l.pos+1 < len(l.input) {
			l.advance()
		}
		if l.peek() == '\n' {
			break // unterminated
		}
		l.advance()
	}
	return Token{Kind: KindChar, Text: l.input[start:l.pos], Loc: loc}
}

func (l *Lexer) scanNumber() Token {
	// Preprocessing numbers are broader than C numbers: they absorb
	// identifier characters, dots, and signed exponents.
	loc := l.loc()
	start := l.pos
	for l.pos < len(l.input) {
		c := l.peek()
		if !isDigit(c) && !isIdentContinue(c) && c != '.' {
			break
		}
		if (c == 'e' || c == 'E' || c == 'p' || c == 'P') && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if next == '+' || next == '-' {
				l.advance()
				l.advance()
				continue
			}
		}
		l.advance()
	}
	return Token{Kind: KindNumber, Text: l.input[start:l.pos], Loc: loc}
}

func (l *Lexer) scanIdent() Token {
	loc := l.loc()
	var text strings.Builder
	for {
		l.skipLineContinuations()
		if l.pos >= len(l.input) || !isIdentContinue(l.peek()) {
			break
		}
		text.WriteByte(l.peek())
		l.advance()
	}
	return Token{Kind: KindIdent, Text: text.String(), Loc: loc}
}

func (l *Lexer) scanPunct() Token {
	loc := l.loc()
	rest := l.input[l.pos:]

	if len(rest) >= 3 {
		switch rest[:3] {
		case "<<=", ">>=", "...":
			l.pos += 3
			return Token{Kind: KindPunct, Text: rest[:3], Loc: loc}
		}
	}
	if len(rest) >= 2 {
		switch rest[:2] {
		case "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=",
			"&&", "||", "*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=":
			l.pos += 2
			return Token{Kind: KindPunct, Text: rest[:2], Loc: loc}
		}
	}
	start := l.pos
	l.advance()
	return Token{Kind: KindPunct, Text: l.input[start:l.pos], Loc: loc}
}

// TokensToString concatenates token texts back into source text.
func TokensToString(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentContinue(c byte) bool { return isIdentStart(c) || isDigit(c) }

// IsIdentifier reports whether s is a valid C identifier.
func IsIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	r := rune(s[0])
	if !unicode.IsLetter(r) && r != '_' {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
