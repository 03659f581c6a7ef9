package lexer

import (
	"testing"

	"github.com/sqlitenow/sqlitenow-go/internal/token"
)

func TestTokenizeBasicSelect(t *testing.T) {
	tokens, d := Tokenize("SELECT id, name FROM person WHERE id = :id", "t.sql")
	if d.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", d.All())
	}
	want := []token.Type{
		token.SELECT, token.IDENT, token.COMMA, token.IDENT, token.FROM, token.IDENT,
		token.WHERE, token.IDENT, token.ASSIGN, token.PARAM, token.EOF,
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tt := range want {
		if tokens[i].Type != tt {
			t.Errorf("token %d: got %s, want %s", i, tokens[i].Type, tt)
		}
	}
}

func TestTokenizeNamedParam(t *testing.T) {
	tokens, _ := Tokenize(":name", "t.sql")
	if tokens[0].Type != token.PARAM || tokens[0].Literal != "name" {
		t.Fatalf("got %+v", tokens[0])
	}
}

func TestTokenizeQuotedIdentifiers(t *testing.T) {
	for _, sql := range []string{`"col"`, "`col`", "[col]"} {
		tokens, d := Tokenize(sql, "t.sql")
		if d.HasErrors() {
			t.Fatalf("%s: unexpected diagnostics: %v", sql, d.All())
		}
		if tokens[0].Type != token.QIDENT || tokens[0].Literal != "col" {
			t.Errorf("%s: got %+v", sql, tokens[0])
		}
	}
}

func TestTokenizeStringLiteralWithEscapedQuote(t *testing.T) {
	tokens, _ := Tokenize(`'it''s'`, "t.sql")
	if tokens[0].Type != token.STRING || tokens[0].Literal != "it's" {
		t.Fatalf("got %+v", tokens[0])
	}
}

func TestCommentsAreSkippedByDefault(t *testing.T) {
	tokens, _ := Tokenize("SELECT 1 -- trailing comment\n", "t.sql")
	for _, tk := range tokens {
		if tk.Type == token.COMMENT {
			t.Fatalf("did not expect COMMENT token in default tokenization: %+v", tk)
		}
	}
}

func TestTokenizeWithCommentsRecoversAnnotationBlock(t *testing.T) {
	tokens, _ := TokenizeWithComments("/* @@{ propertyType=LocalDate, adapter } */\nid", "t.sql")
	if tokens[0].Type != token.COMMENT {
		t.Fatalf("expected leading COMMENT token, got %+v", tokens[0])
	}
	if tokens[0].Literal != "@@{ propertyType=LocalDate, adapter }" {
		t.Fatalf("unexpected comment literal: %q", tokens[0].Literal)
	}
}
