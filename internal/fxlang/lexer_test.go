package fxlang

import "testing"

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexerTokenizesIntegerAndFraction(t *testing.T) {
	toks, err := NewLexer("3 1/2").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 { // int, frac, EOF
		t.Fatalf("got %d tokens, want 3: %+v", len(toks), toks)
	}
	if toks[0].Kind != TokInt || toks[0].Int != 3 || toks[0].IsFrac {
		t.Errorf("toks[0] = %+v, want plain int 3", toks[0])
	}
	if toks[1].Kind != TokInt || !toks[1].IsFrac || toks[1].Int != 1 || toks[1].Den != 2 {
		t.Errorf("toks[1] = %+v, want fraction 1/2", toks[1])
	}
}

func TestLexerUnquotedStringKeepsColonSegments(t *testing.T) {
	toks, err := NewLexer("ability:sturdy-body").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != TokUnquotedString || toks[0].Text != "ability:sturdy-body" {
		t.Errorf("toks[0] = %+v, want unquoted string ability:sturdy-body", toks[0])
	}
}

func TestLexerSingleQuotedStringHandlesEscapes(t *testing.T) {
	toks, err := NewLexer(`'it\'s \\ a\ntest'`).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	want := "it's \\ a\ntest"
	if toks[0].Kind != TokString || toks[0].Text != want {
		t.Errorf("toks[0] = %+v, want string %q", toks[0], want)
	}
}

func TestLexerUnterminatedStringErrors(t *testing.T) {
	_, err := NewLexer("'unterminated").Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestLexerUnknownEscapeErrors(t *testing.T) {
	_, err := NewLexer(`'bad\qescape'`).Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unknown escape sequence")
	}
}

func TestLexerCommentLineYieldsOnlyEOF(t *testing.T) {
	toks, err := NewLexer("# just a comment").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Kind != TokEOF {
		t.Errorf("got %+v, want a single EOF token", toks)
	}
}

func TestLexerKeywordsAreDistinguishedFromIdents(t *testing.T) {
	toks, err := NewLexer("if foreach notakeyword").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Kind != TokKeyword || toks[0].Text != "if" {
		t.Errorf("toks[0] = %+v, want keyword if", toks[0])
	}
	if toks[1].Kind != TokKeyword || toks[1].Text != "foreach" {
		t.Errorf("toks[1] = %+v, want keyword foreach", toks[1])
	}
	if toks[2].Kind != TokIdent || toks[2].Text != "notakeyword" {
		t.Errorf("toks[2] = %+v, want plain ident", toks[2])
	}
}

func TestLexerTwoCharacterSymbolsAreNotSplit(t *testing.T) {
	toks, err := NewLexer("$a == $b").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, tok := range toks {
		if tok.Kind == TokSymbol && tok.Text == "==" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a single '==' symbol token, got %+v", toks)
	}
}

func TestLexerRejectsUnexpectedCharacter(t *testing.T) {
	_, err := NewLexer("@").Tokenize()
	if err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
}

func TestLexerEmptyLineYieldsEOF(t *testing.T) {
	toks, err := NewLexer("").Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 1 || toks[0].Kind != TokEOF {
		t.Errorf("got %+v, want a single EOF token", toks)
	}
}
