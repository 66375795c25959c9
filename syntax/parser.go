// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

import (
	"fmt"
	"strings"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/token"
)

// Parser is a recursive-descent parser with one-token look-ahead over a
// token stream already produced by a Lexer (spec §4.2).
type Parser struct {
	toks []Lexed
	idx  int
}

// NewParser builds a Parser from a complete, already-lexed token stream.
func NewParser(toks []Lexed) *Parser { return &Parser{toks: toks} }

// Parse lexes src and parses it into a single top-level node, normally
// an ast.Sequence.
func Parse(src []byte) (ast.Node, error) {
	toks, err := NewLexer(src).Lex()
	if err != nil {
		return nil, err
	}
	p := NewParser(toks)
	n, err := p.parseSequence(stopNever)
	if err != nil {
		return nil, err
	}
	if p.peek().Tok != token.EOF {
		return nil, p.errf(p.peek().Pos, "unexpected token %v", p.peek().Tok)
	}
	return n, nil
}

func (p *Parser) peek() Lexed { return p.toks[p.idx] }

func (p *Parser) peekAt(off int) Lexed {
	i := p.idx + off
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[i]
}

func (p *Parser) advance() Lexed {
	t := p.toks[p.idx]
	if p.idx < len(p.toks)-1 {
		p.idx++
	}
	return t
}

func (p *Parser) atEnd() bool { return p.peek().Tok == token.EOF }

func (p *Parser) errf(pos token.Pos, format string, args ...any) error {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(tok token.Token) (Lexed, error) {
	if p.peek().Tok != tok {
		return Lexed{}, p.errf(p.peek().Pos, "expected %v, found %v", tok, p.peek().Tok)
	}
	return p.advance(), nil
}

// stopFunc decides whether the current token terminates an enclosing
// sequence; see parseSequence.
type stopFunc func(Lexed) bool

func stopNever(Lexed) bool { return false }

func stopAtWord(names ...string) stopFunc {
	return func(tk Lexed) bool {
		for _, n := range names {
			if isReservedWord(tk, n) {
				return true
			}
		}
		return false
	}
}

func stopAtTok(tok token.Token) stopFunc {
	return func(tk Lexed) bool { return tk.Tok == tok }
}

// isReservedWord reports whether tk is a single, unquoted word token
// whose literal text is exactly name (spec §4.2: "Reserved words are
// recognized only as single, unquoted word tokens").
func isReservedWord(tk Lexed, name string) bool {
	if tk.Tok != token.WORD || tk.Word.Outer != ast.NoQuote || len(tk.Word.Parts) != 1 {
		return false
	}
	lit, ok := tk.Word.Parts[0].(ast.Literal)
	return ok && lit.Inner == ast.NoQuote && lit.Text == name
}

// literalText returns a word's text if it is a single unquoted literal,
// and false otherwise.
func literalText(w ast.Word) (string, bool) {
	if w.Outer != ast.NoQuote || len(w.Parts) != 1 {
		return "", false
	}
	lit, ok := w.Parts[0].(ast.Literal)
	if !ok || lit.Inner != ast.NoQuote {
		return "", false
	}
	return lit.Text, true
}

// ---- sequence / pipeline / logical / not ----

// parseSequence implements `sequence := pipeline ( (';' | '\n' | '&') pipeline? )*`.
func (p *Parser) parseSequence(stop stopFunc) (ast.Node, error) {
	seq := &ast.Sequence{}
	for {
		for p.peek().Tok == token.SEMICOLON || p.peek().Tok == token.NEWLINE {
			p.advance()
		}
		if p.atEnd() || stop(p.peek()) {
			return *seq, nil
		}
		node, err := p.parsePipeline(stop)
		if err != nil {
			return nil, err
		}
		switch p.peek().Tok {
		case token.AMPERSAND:
			p.advance()
			seq.Nodes = append(seq.Nodes, ast.Background{N: node})
			continue
		case token.SEMICOLON, token.NEWLINE:
			seq.Nodes = append(seq.Nodes, node)
			continue
		default:
			seq.Nodes = append(seq.Nodes, node)
			if p.atEnd() || stop(p.peek()) {
				return *seq, nil
			}
			return nil, p.errf(p.peek().Pos, "unexpected token %v after command", p.peek().Tok)
		}
	}
}

// parsePipeline implements `pipeline := logical ('|' logical)*`.
func (p *Parser) parsePipeline(stop stopFunc) (ast.Node, error) {
	first, err := p.parseLogical(stop)
	if err != nil {
		return nil, err
	}
	nodes := []ast.Node{first}
	for p.peek().Tok == token.PIPE {
		p.advance()
		n, err := p.parseLogical(stop)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return ast.Pipeline{Nodes: nodes}, nil
}

// parseLogical implements `logical := not_expr (('&&' | '||') not_expr)*`,
// left-associative.
func (p *Parser) parseLogical(stop stopFunc) (ast.Node, error) {
	left, err := p.parseNot(stop)
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Tok {
		case token.LAND:
			p.advance()
			right, err := p.parseNot(stop)
			if err != nil {
				return nil, err
			}
			left = ast.And{L: left, R: right}
		case token.LOR:
			p.advance()
			right, err := p.parseNot(stop)
			if err != nil {
				return nil, err
			}
			left = ast.Or{L: left, R: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseNot(stop stopFunc) (ast.Node, error) {
	if p.peek().Tok == token.LNOT {
		p.advance()
		n, err := p.parseCommandOrCompound(stop)
		if err != nil {
			return nil, err
		}
		return ast.Not{N: n}, nil
	}
	return p.parseCommandOrCompound(stop)
}

// ---- command_or_compound ----

func (p *Parser) parseCommandOrCompound(stop stopFunc) (ast.Node, error) {
	tk := p.peek()
	switch {
	case isReservedWord(tk, "if"):
		return p.parseIf()
	case isReservedWord(tk, "while"):
		return p.parseWhileUntil(false)
	case isReservedWord(tk, "until"):
		return p.parseWhileUntil(true)
	case isReservedWord(tk, "for"):
		return p.parseFor()
	case tk.Tok == token.LBRACE:
		return p.parseGroup()
	case tk.Tok == token.LPAREN:
		return p.parseSubshell()
	case isWordLiteral(tk, "break"):
		p.advance()
		return p.parseBreakContinue(func(w *ast.Word) ast.Node { return ast.Break{Level: w} })
	case isWordLiteral(tk, "continue"):
		p.advance()
		return p.parseBreakContinue(func(w *ast.Word) ast.Node { return ast.Continue{Level: w} })
	case tk.Tok == token.WORD && p.peekAt(1).Tok == token.LPAREN && p.peekAt(2).Tok == token.RPAREN:
		return p.parseFunctionDef()
	default:
		return p.parseSimple(stop)
	}
}

func isWordLiteral(tk Lexed, name string) bool {
	if tk.Tok != token.WORD {
		return false
	}
	s, ok := literalText(tk.Word)
	return ok && s == name
}

func (p *Parser) parseBreakContinue(make func(*ast.Word) ast.Node) (ast.Node, error) {
	if p.peek().Tok == token.WORD {
		w := p.advance().Word
		return make(&w), nil
	}
	return make(nil), nil
}

// ---- if / while / until / for ----

func (p *Parser) parseIf() (ast.Node, error) {
	p.advance() // "if"
	cond, err := p.parseSequence(stopAtWord("then"))
	if err != nil {
		return nil, err
	}
	if _, err := p.expectWord("then"); err != nil {
		return nil, err
	}
	then, err := p.parseSequence(stopAtWord("elif", "else", "fi"))
	if err != nil {
		return nil, err
	}
	n := ast.If{Cond: cond, Then: then}
	for isReservedWord(p.peek(), "elif") {
		p.advance()
		c, err := p.parseSequence(stopAtWord("then"))
		if err != nil {
			return nil, err
		}
		if _, err := p.expectWord("then"); err != nil {
			return nil, err
		}
		b, err := p.parseSequence(stopAtWord("elif", "else", "fi"))
		if err != nil {
			return nil, err
		}
		n.Elif = append(n.Elif, ast.ElifArm{Cond: c, Body: b})
	}
	if isReservedWord(p.peek(), "else") {
		p.advance()
		e, err := p.parseSequence(stopAtWord("fi"))
		if err != nil {
			return nil, err
		}
		n.Else = e
	}
	if _, err := p.expectWord("fi"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *Parser) parseWhileUntil(until bool) (ast.Node, error) {
	p.advance() // "while" / "until"
	cond, err := p.parseSequence(stopAtWord("do"))
	if err != nil {
		return nil, err
	}
	if _, err := p.expectWord("do"); err != nil {
		return nil, err
	}
	body, err := p.parseSequence(stopAtWord("done"))
	if err != nil {
		return nil, err
	}
	if _, err := p.expectWord("done"); err != nil {
		return nil, err
	}
	if until {
		return ast.Until{Cond: cond, Body: body}, nil
	}
	return ast.While{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Node, error) {
	p.advance() // "for"
	nameTk := p.peek()
	if nameTk.Tok != token.WORD {
		return nil, p.errf(nameTk.Pos, "expected loop variable name")
	}
	name, ok := literalText(nameTk.Word)
	if !ok {
		return nil, p.errf(nameTk.Pos, "invalid loop variable name")
	}
	p.advance()
	if _, err := p.expectWord("in"); err != nil {
		return nil, err
	}
	var values []ast.Word
	for {
		tk := p.peek()
		if tk.Tok == token.SEMICOLON || tk.Tok == token.NEWLINE || isReservedWord(tk, "do") {
			break
		}
		if tk.Tok != token.WORD {
			return nil, p.errf(tk.Pos, "expected word in for-loop value list")
		}
		values = append(values, tk.Word)
		p.advance()
	}
	for p.peek().Tok == token.SEMICOLON || p.peek().Tok == token.NEWLINE {
		p.advance()
	}
	if _, err := p.expectWord("do"); err != nil {
		return nil, err
	}
	body, err := p.parseSequence(stopAtWord("done"))
	if err != nil {
		return nil, err
	}
	if _, err := p.expectWord("done"); err != nil {
		return nil, err
	}
	return ast.For{Var: name, Values: values, Body: body}, nil
}

func (p *Parser) expectWord(name string) (Lexed, error) {
	if !isReservedWord(p.peek(), name) {
		return Lexed{}, p.errf(p.peek().Pos, "expected %q, found %v", name, p.peek().Tok)
	}
	return p.advance(), nil
}

// ---- group / subshell / function ----

// parseGroup implements `group := '{' sequence '}' redirect*`, including
// the brace-fusion case described in spec §9/§4.2 where the lexer could
// not tell "){" apart as its own token and glued the '{' to the next
// word; we split it back apart here.
func (p *Parser) parseGroup() (ast.Node, error) {
	if err := p.consumeOpenBrace(); err != nil {
		return nil, err
	}
	body, err := p.parseSequence(stopAtTok(token.RBRACE))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	redirs, err := p.parseRedirects()
	if err != nil {
		return nil, err
	}
	seq := body.(ast.Sequence)
	if len(seq.Nodes) == 0 {
		return nil, p.errf(p.peek().Pos, "empty group")
	}
	return ast.Group{Commands: seq.Nodes, Redirects: redirs}, nil
}

func (p *Parser) consumeOpenBrace() error {
	tk := p.peek()
	if tk.Tok == token.LBRACE {
		p.advance()
		return nil
	}
	if tk.Tok == token.WORD {
		if lit, ok := tk.Word.Parts[0].(ast.Literal); ok && strings.HasPrefix(lit.Text, "{") && len(tk.Word.Parts) >= 1 {
			rest := lit.Text[1:]
			newParts := append([]ast.WordPart{}, tk.Word.Parts...)
			if rest == "" {
				newParts = newParts[1:]
			} else {
				newParts[0] = ast.Literal{Text: rest, Inner: lit.Inner}
			}
			if len(newParts) == 0 {
				p.advance()
				return nil
			}
			p.toks[p.idx].Word.Parts = newParts
			return nil
		}
	}
	return p.errf(tk.Pos, "expected '{', found %v", tk.Tok)
}

func (p *Parser) parseSubshell() (ast.Node, error) {
	p.advance() // '('
	body, err := p.parseSequence(stopAtTok(token.RPAREN))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return ast.Subshell{N: body}, nil
}

func (p *Parser) parseFunctionDef() (ast.Node, error) {
	name := p.advance().Word // function name
	p.advance()              // '('
	p.advance()              // ')'
	body, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	return ast.FunctionDef{Name: name, Body: body}, nil
}

// ---- simple commands, assignments, redirects ----

func isRedirectTok(t token.Token) bool {
	switch t {
	case token.REDIRIN, token.REDIROUT, token.REDIRAPPEND, token.REDIRHEREDOC,
		token.REDIRINFD, token.REDIROUTFD, token.REDIRAPPENDFD:
		return true
	}
	return false
}

func (p *Parser) parseSimple(stop stopFunc) (ast.Node, error) {
	var assigns []ast.Assignment
	for p.peek().Tok == token.WORD {
		name, val, absorbNext, ok := tryParseAssignment(p.peek().Word, p.peekAt(1))
		if !ok {
			break
		}
		p.advance()
		if absorbNext {
			p.advance()
		}
		assigns = append(assigns, ast.Assignment{Name: name, Value: val})
	}

	var cmd ast.Word
	var args []ast.Word
	var redirects []ast.Redirect
	haveCmd := false
	for {
		tk := p.peek()
		switch {
		case tk.Tok == token.WORD:
			if !haveCmd {
				cmd, haveCmd = tk.Word, true
			} else {
				args = append(args, tk.Word)
			}
			p.advance()
		case isRedirectTok(tk.Tok):
			r, err := p.parseRedirect()
			if err != nil {
				return nil, err
			}
			redirects = append(redirects, r)
		default:
			goto done
		}
	}
done:
	if !haveCmd && len(assigns) == 0 && len(redirects) == 0 {
		return nil, p.errf(p.peek().Pos, "unexpected token %v", p.peek().Tok)
	}
	return ast.Command{Cmd: cmd, Args: args, Assignments: assigns, Redirects: redirects}, nil
}

// tryParseAssignment reports whether w looks like a `NAME=value` prefix
// word. When the '=' is the very last character of the whole word, the
// assignment absorbs the following word as its value (spec §4.2: "FOO=
// bar" vs "FOO=bar"); absorbNext signals that the caller must also
// consume next.
func tryParseAssignment(w ast.Word, next Lexed) (name string, val ast.Word, absorbNext, ok bool) {
	if w.Outer != ast.NoQuote || len(w.Parts) == 0 {
		return "", ast.Word{}, false, false
	}
	lit, isLit := w.Parts[0].(ast.Literal)
	if !isLit || lit.Inner != ast.NoQuote {
		return "", ast.Word{}, false, false
	}
	eq := strings.IndexByte(lit.Text, '=')
	if eq <= 0 {
		return "", ast.Word{}, false, false
	}
	nameCandidate := lit.Text[:eq]
	if !isValidName(nameCandidate) {
		return "", ast.Word{}, false, false
	}
	rest := lit.Text[eq+1:]
	var valParts []ast.WordPart
	if rest != "" {
		valParts = append(valParts, ast.Literal{Text: rest, Inner: lit.Inner})
	}
	valParts = append(valParts, w.Parts[1:]...)
	if len(valParts) == 0 {
		if next.Tok == token.WORD {
			return nameCandidate, next.Word, true, true
		}
		return nameCandidate, ast.Word{}, false, true
	}
	return nameCandidate, ast.Word{Parts: valParts}, false, true
}

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
		isDigit := c >= '0' && c <= '9'
		if i == 0 && !isAlpha {
			return false
		}
		if i > 0 && !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// parseRedirect implements spec §4.4's target parsing, including the
// `&-`/`&N` duplicate-or-close forms which the lexer hands back as a
// separate AMPERSAND token followed by a plain word.
func (p *Parser) parseRedirect() (ast.Redirect, error) {
	tk := p.advance()
	var op ast.RedirectOp
	var fd *uint64
	switch tk.Tok {
	case token.REDIRIN:
		op = ast.Read
	case token.REDIROUT:
		op = ast.Write
	case token.REDIRAPPEND:
		op = ast.Append
	case token.REDIRHEREDOC:
		op = ast.HereDoc
	case token.REDIRINFD:
		op, fd = ast.Read, &tk.FD
	case token.REDIROUTFD:
		op, fd = ast.Write, &tk.FD
	case token.REDIRAPPENDFD:
		op, fd = ast.Append, &tk.FD
	}

	if p.peek().Tok == token.AMPERSAND {
		p.advance()
		targetTk := p.peek()
		if targetTk.Tok != token.WORD {
			return ast.Redirect{}, p.errf(targetTk.Pos, "redirect without target")
		}
		s, ok := literalText(targetTk.Word)
		if !ok {
			return ast.Redirect{}, p.errf(targetTk.Pos, "invalid duplicate-fd target")
		}
		p.advance()
		return ast.Redirect{FD: fd, Op: op, Target: ast.Word{Parts: []ast.WordPart{ast.Literal{Text: "&" + s}}}}, nil
	}

	if p.peek().Tok != token.WORD {
		return ast.Redirect{}, p.errf(p.peek().Pos, "redirect without target")
	}
	target := p.advance().Word
	return ast.Redirect{FD: fd, Op: op, Target: target}, nil
}

func (p *Parser) parseRedirects() ([]ast.Redirect, error) {
	var redirs []ast.Redirect
	for isRedirectTok(p.peek().Tok) {
		r, err := p.parseRedirect()
		if err != nil {
			return nil, err
		}
		redirs = append(redirs, r)
	}
	return redirs, nil
}
