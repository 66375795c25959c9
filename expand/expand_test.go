// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package expand

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/env"
)

func newCfg(t *testing.T) *Config {
	t.Helper()
	e, err := env.New()
	qt.Assert(t, err, qt.IsNil)
	e.SetLocal("FOO", "bar baz")
	return &Config{Env: e}
}

func lit(s string) ast.WordPart { return ast.Literal{Text: s} }

func TestLiteral(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Outer: ast.Double, Parts: []ast.WordPart{
		lit("x="),
		ast.VariableSubstitution{Name: "FOO"},
	}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "x=bar baz")
}

func TestFieldsSplitsUnquoted(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Outer: ast.NoQuote, Parts: []ast.WordPart{
		ast.VariableSubstitution{Name: "FOO"},
	}}
	got, err := Fields(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []string{"bar", "baz"})
}

func TestFieldsKeepsQuotedWhole(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Outer: ast.Double, Parts: []ast.WordPart{
		ast.VariableSubstitution{Name: "FOO"},
	}}
	got, err := Fields(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []string{"bar baz"})
}

func TestFieldsMultipleWords(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	a := ast.Word{Outer: ast.NoQuote, Parts: []ast.WordPart{lit("a")}}
	b := ast.Word{Outer: ast.NoQuote, Parts: []ast.WordPart{lit("b")}}
	got, err := Fields(cfg, a, b)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.DeepEquals, []string{"a", "b"})
}

func TestCommandSubstitution(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	cfg.CmdSubst = func(source string) (string, error) {
		qt.Assert(t, source, qt.Equals, "echo hi")
		return "hi\n", nil
	}
	w := ast.Word{Outer: ast.NoQuote, Parts: []ast.WordPart{
		ast.CommandSubstitution{Source: "echo hi"},
	}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "hi")
}

func TestCommandSubstitutionError(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	wantErr := fmt.Errorf("boom")
	cfg.CmdSubst = func(source string) (string, error) { return "", wantErr }
	w := ast.Word{Parts: []ast.WordPart{ast.CommandSubstitution{Source: "x"}}}
	_, err := Literal(cfg, w)
	qt.Assert(t, err, qt.Equals, wantErr)
}

func TestCommandSubstitutionNilHookYieldsEmpty(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Parts: []ast.WordPart{ast.CommandSubstitution{Source: "x"}}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "")
}

func TestArithmeticSubstitutionNilHookReturnsRaw(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Parts: []ast.WordPart{ast.ArithmeticSubstitution{Expr: "1+1"}}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "1+1")
}

func TestArithmeticSubstitutionWithHook(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	cfg.Arith = func(expr string) (int64, error) {
		qt.Assert(t, expr, qt.Equals, "1+1")
		return 2, nil
	}
	w := ast.Word{Parts: []ast.WordPart{ast.ArithmeticSubstitution{Expr: "1+1"}}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "2")
}

func TestUnsetVariableExpandsEmpty(t *testing.T) {
	t.Parallel()
	cfg := newCfg(t)
	w := ast.Word{Parts: []ast.WordPart{ast.VariableSubstitution{Name: "NOPE"}}}
	got, err := Literal(cfg, w)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, got, qt.Equals, "")
}
