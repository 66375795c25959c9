// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package expand turns a parsed Word into the string(s) the executor
// actually runs with: variable, command and arithmetic substitution,
// followed by field splitting outside quotes (spec §4.3).
package expand

import (
	"strconv"
	"strings"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/env"
)

// Config wires the expander to the rest of the shell without an import
// cycle: command substitution must re-run the executor over a parsed
// sub-program, and the executor package imports expand, not the other
// way round, so both hooks are plain function values supplied by the
// caller (the same shape as the teacher's Context.Subshell hook).
type Config struct {
	Env *env.Env

	// CmdSubst evaluates source as a shell sub-program and returns its
	// captured standard output, trailing newlines intact; Expand strips
	// them per spec §4.3.
	CmdSubst func(source string) (string, error)

	// Arith evaluates an arithmetic expression. A nil Arith (the
	// default) leaves arithmetic substitutions unevaluated, returning
	// their raw expression text, matching the source program's
	// behavior called out as an open question in spec §9.
	Arith func(expr string) (int64, error)
}

// Literal expands w to a single field, without field splitting,
// regardless of its outermost quote. This is used for redirect targets,
// assignment values, function names, break/continue levels, and other
// contexts that always want one string (spec §4.4, §4.5.1's
// classification step notwithstanding the later arg splitting).
func Literal(cfg *Config, w ast.Word) (string, error) {
	return concat(cfg, w)
}

// Fields expands each word into one or more fields: NoQuote words are
// split on whitespace after concatenation, quoted words always yield
// exactly one field (spec §4.3).
func Fields(cfg *Config, words ...ast.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		s, err := concat(cfg, w)
		if err != nil {
			return nil, err
		}
		if w.Outer == ast.NoQuote {
			out = append(out, strings.Fields(s)...)
		} else {
			out = append(out, s)
		}
	}
	return out, nil
}

// concat expands every part of w and joins them into a single string,
// deferring the split-or-not decision to the caller.
func concat(cfg *Config, w ast.Word) (string, error) {
	var sb strings.Builder
	for _, part := range w.Parts {
		s, err := expandPart(cfg, part)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return sb.String(), nil
}

func expandPart(cfg *Config, part ast.WordPart) (string, error) {
	switch p := part.(type) {
	case ast.Literal:
		return p.Text, nil
	case ast.VariableSubstitution:
		return cfg.Env.Get(p.Name), nil
	case ast.CommandSubstitution:
		if cfg.CmdSubst == nil {
			return "", nil
		}
		out, err := cfg.CmdSubst(p.Source)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	case ast.ArithmeticSubstitution:
		if cfg.Arith == nil {
			return p.Expr, nil
		}
		n, err := cfg.Arith(p.Expr)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", nil
	}
}
