// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/token"
)

func wordText(w ast.Word) string {
	var out string
	for _, p := range w.Parts {
		if lit, ok := p.(ast.Literal); ok {
			out += lit.Text
		}
	}
	return out
}

func tokens(t *testing.T, src string) []Lexed {
	t.Helper()
	toks, err := NewLexer([]byte(src)).Lex()
	qt.Assert(t, err, qt.IsNil)
	return toks
}

func TestLexOperators(t *testing.T) {
	t.Parallel()
	tests := [...]struct {
		src  string
		want []token.Token
	}{
		{"", []token.Token{token.EOF}},
		{"a | b", []token.Token{token.WORD, token.PIPE, token.WORD, token.EOF}},
		{"a && b", []token.Token{token.WORD, token.LAND, token.WORD, token.EOF}},
		{"a || b", []token.Token{token.WORD, token.LOR, token.WORD, token.EOF}},
		{"a; b\n", []token.Token{token.WORD, token.SEMICOLON, token.WORD, token.NEWLINE, token.EOF}},
		{"a & b", []token.Token{token.WORD, token.AMPERSAND, token.WORD, token.EOF}},
		{"! a", []token.Token{token.LNOT, token.WORD, token.EOF}},
		{"(a)", []token.Token{token.LPAREN, token.WORD, token.RPAREN, token.EOF}},
		{"{ a; }", []token.Token{token.LBRACE, token.WORD, token.SEMICOLON, token.RBRACE, token.EOF}},
		{"a > b", []token.Token{token.WORD, token.REDIROUT, token.WORD, token.EOF}},
		{"a >> b", []token.Token{token.WORD, token.REDIRAPPEND, token.WORD, token.EOF}},
		{"a < b", []token.Token{token.WORD, token.REDIRIN, token.WORD, token.EOF}},
		{"a 2> b", []token.Token{token.WORD, token.REDIROUTFD, token.WORD, token.EOF}},
		{"a 2>> b", []token.Token{token.WORD, token.REDIRAPPENDFD, token.WORD, token.EOF}},
		{"a 2< b", []token.Token{token.WORD, token.REDIRINFD, token.WORD, token.EOF}},
	}

	for _, test := range tests {
		test := test
		t.Run("", func(t *testing.T) {
			t.Parallel()
			toks := tokens(t, test.src)
			var got []token.Token
			for _, tk := range toks {
				got = append(got, tk.Tok)
			}
			qt.Assert(t, got, qt.DeepEquals, test.want)
		})
	}
}

func TestLexComment(t *testing.T) {
	t.Parallel()
	toks := tokens(t, "echo hi # trailing comment\n")
	var got []token.Token
	for _, tk := range toks {
		got = append(got, tk.Tok)
	}
	qt.Assert(t, got, qt.DeepEquals, []token.Token{token.WORD, token.WORD, token.NEWLINE, token.EOF})
}

func TestLexWordLiteral(t *testing.T) {
	t.Parallel()
	toks := tokens(t, "foobar")
	qt.Assert(t, len(toks), qt.Equals, 2)
	qt.Assert(t, toks[0].Tok, qt.Equals, token.WORD)
	qt.Assert(t, wordText(toks[0].Word), qt.Equals, "foobar")
}

func TestLexQuoting(t *testing.T) {
	t.Parallel()
	tests := [...]struct {
		src   string
		outer ast.Quote
		text  string
	}{
		{`'single quoted'`, ast.Single, "single quoted"},
		{`"double quoted"`, ast.Double, "double quoted"},
		{`plain`, ast.NoQuote, "plain"},
	}
	for _, test := range tests {
		test := test
		t.Run("", func(t *testing.T) {
			t.Parallel()
			toks := tokens(t, test.src)
			qt.Assert(t, toks[0].Word.Outer, qt.Equals, test.outer)
			qt.Assert(t, wordText(toks[0].Word), qt.Equals, test.text)
		})
	}
}

func TestLexVariableSubstitution(t *testing.T) {
	t.Parallel()
	toks := tokens(t, "$FOO")
	qt.Assert(t, toks[0].Tok, qt.Equals, token.WORD)
	qt.Assert(t, len(toks[0].Word.Parts), qt.Equals, 1)
	sub, ok := toks[0].Word.Parts[0].(ast.VariableSubstitution)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, sub.Name, qt.Equals, "FOO")
}

func TestLexFdRedirectDigitsFallBackToWord(t *testing.T) {
	t.Parallel()
	// "123abc" has no adjacent '>'/'<', so it must lex as one word, not
	// an attempted fd redirect.
	toks := tokens(t, "123abc")
	qt.Assert(t, toks[0].Tok, qt.Equals, token.WORD)
	qt.Assert(t, wordText(toks[0].Word), qt.Equals, "123abc")
}
