// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package token

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestString(t *testing.T) {
	t.Parallel()
	tests := [...]struct {
		tok  Token
		want string
	}{
		{ILLEGAL, "ILLEGAL"},
		{EOF, "EOF"},
		{WORD, "WORD"},
		{PIPE, "|"},
		{LAND, "&&"},
		{LOR, "||"},
		{REDIRAPPENDFD, "N>>"},
		{Token(999), "unknown"},
	}

	for _, test := range tests {
		test := test
		t.Run("", func(t *testing.T) {
			t.Parallel()
			qt.Assert(t, test.tok.String(), qt.Equals, test.want)
		})
	}
}

func TestReserved(t *testing.T) {
	t.Parallel()
	for _, word := range []string{"if", "then", "elif", "else", "fi", "while", "until", "do", "done", "for", "in"} {
		qt.Assert(t, Reserved[word], qt.IsTrue)
	}
	for _, word := range []string{"echo", "cd", "function", "[[", "case"} {
		qt.Assert(t, Reserved[word], qt.IsFalse)
	}
}
