package fxlang

import (
	"fmt"
	"strings"
)

// TokenKind categorizes a lexed token (spec.md §4.2 "Token categories").
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokUnquotedString // identifier with ':' and more, e.g. "ability:sturdy"
	TokString         // single-quoted string literal
	TokInt            // integer literal, optionally a fraction num/den
	TokSymbol
	TokKeyword
	TokEOF
)

var keywords = map[string]bool{
	"true": true, "false": true, "expr": true, "func_call": true,
	"if": true, "else": true, "foreach": true, "in": true,
	"return": true, "or": true, "and": true, "has": true,
	"hasany": true, "str": true,
}

// Token is one lexed unit of an fxlang program line.
type Token struct {
	Kind  TokenKind
	Text  string // literal text (identifier name, symbol, string contents)
	Int   int64  // integer literal numerator
	Den   int64  // integer literal denominator (1 unless written as num/den)
	IsFrac bool
	Pos   int
}

// Lexer is a byte-level scanner over a single fxlang source line.
type Lexer struct {
	src []byte
	pos int
}

// NewLexer returns a Lexer over the given line of fxlang source.
func NewLexer(line string) *Lexer {
	return &Lexer{src: []byte(line)}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.peek()
	l.pos++
	return c
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentCont(c byte) bool { return isIdentStart(c) || isDigit(c) }

// Tokenize scans the whole line into a token slice ending with TokEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) next() (Token, error) {
	for isSpace(l.peek()) {
		l.advance()
	}
	start := l.pos
	c := l.peek()
	if c == 0 {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	// Line comment.
	if c == '#' {
		l.pos = len(l.src)
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	// Single-quoted string literal with \' \\ \n escapes.
	if c == '\'' {
		l.advance()
		var sb strings.Builder
		for {
			ch := l.peek()
			if ch == 0 {
				return Token{}, fmt.Errorf("fxlang: unterminated string literal at %d", start)
			}
			if ch == '\'' {
				l.advance()
				break
			}
			if ch == '\\' {
				l.advance()
				esc := l.advance()
				switch esc {
				case '\'':
					sb.WriteByte('\'')
				case '\\':
					sb.WriteByte('\\')
				case 'n':
					sb.WriteByte('\n')
				default:
					return Token{}, fmt.Errorf("fxlang: unknown escape \\%c at %d", esc, start)
				}
				continue
			}
			sb.WriteByte(ch)
			l.advance()
		}
		return Token{Kind: TokString, Text: sb.String(), Pos: start}, nil
	}

	// Integer literal, optionally a fraction num/den.
	if isDigit(c) {
		for isDigit(l.peek()) {
			l.advance()
		}
		numText := string(l.src[start:l.pos])
		var num int64
		fmt.Sscanf(numText, "%d", &num)
		if l.peek() == '/' && isDigit(l.peekAt(1)) {
			l.advance() // consume '/'
			denStart := l.pos
			for isDigit(l.peek()) {
				l.advance()
			}
			var den int64
			fmt.Sscanf(string(l.src[denStart:l.pos]), "%d", &den)
			return Token{Kind: TokInt, Int: num, Den: den, IsFrac: true, Pos: start}, nil
		}
		return Token{Kind: TokInt, Int: num, Den: 1, Pos: start}, nil
	}

	// Identifier, keyword, or unquoted string (identifier with ':' and more).
	if isIdentStart(c) {
		for isIdentCont(l.peek()) {
			l.advance()
		}
		if l.peek() == ':' {
			// unquoted string: keep consuming ident-or-colon-or-dash segments
			for l.peek() == ':' || isIdentCont(l.peek()) || l.peek() == '-' {
				l.advance()
			}
			return Token{Kind: TokUnquotedString, Text: string(l.src[start:l.pos]), Pos: start}, nil
		}
		text := string(l.src[start:l.pos])
		if keywords[text] {
			return Token{Kind: TokKeyword, Text: text, Pos: start}, nil
		}
		return Token{Kind: TokIdent, Text: text, Pos: start}, nil
	}

	// Two-character symbols.
	two := string(l.src[start:min(start+2, len(l.src))])
	switch two {
	case "==", "!=", "<=", ">=":
		l.pos += 2
		return Token{Kind: TokSymbol, Text: two, Pos: start}, nil
	}

	// Single-character symbols.
	switch c {
	case '=', '<', '>', '+', '-', '*', '/', '%', '!', '$', ':', ',', '.', '(', ')', '[', ']':
		l.advance()
		return Token{Kind: TokSymbol, Text: string(c), Pos: start}, nil
	}

	return Token{}, fmt.Errorf("fxlang: unexpected character %q at %d", c, start)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
