// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/expand"
)

// openFDs is the result of the redirection engine: fds to install into
// a child (or an in-process builtin), and fds the caller must close
// once it is done with them (spec §4.4, "returned fds are owned").
type openFDs struct {
	install map[int]*os.File
	close   map[int]bool // fds whose target was "&-"
}

// buildRedirects translates a command's (already-merged) redirects into
// an fd map. Each redirect's target is expanded fresh, since it may
// itself contain substitutions.
func buildRedirects(cfg *expand.Config, redirects []ast.Redirect) (*openFDs, error) {
	out := &openFDs{install: map[int]*os.File{}, close: map[int]bool{}}
	for _, r := range redirects {
		fd := defaultFD(r.Op)
		if r.FD != nil {
			fd = int(*r.FD)
		}
		target, err := expand.Literal(cfg, r.Target)
		if err != nil {
			return nil, &RedirectError{Op: "expand target", Err: err}
		}
		if strings.HasPrefix(target, "&") {
			rest := target[1:]
			if rest == "-" {
				delete(out.install, fd)
				out.close[fd] = true
				continue
			}
			src, err := strconv.Atoi(rest)
			if err != nil {
				return nil, &RedirectError{Op: "duplicate fd", Err: err}
			}
			dupFD, err := syscall.Dup(src)
			if err != nil {
				return nil, &RedirectError{Op: "dup", Err: err}
			}
			out.install[fd] = os.NewFile(uintptr(dupFD), target)
			delete(out.close, fd)
			continue
		}

		var f *os.File
		switch r.Op {
		case ast.Write:
			f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		case ast.Append:
			f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		case ast.Read:
			f, err = os.OpenFile(target, os.O_RDONLY, 0)
		case ast.HereDoc, ast.ReadWrite:
			return nil, &RedirectError{Op: "unsupported", Err: errUnsupportedRedirect(r.Op)}
		}
		if err != nil {
			return nil, &RedirectError{Op: "open " + target, Err: err}
		}
		out.install[fd] = f
		delete(out.close, fd)
	}
	return out, nil
}

func defaultFD(op ast.RedirectOp) int {
	if op == ast.Read {
		return 0
	}
	return 1
}

type errUnsupportedRedirect ast.RedirectOp

func (e errUnsupportedRedirect) Error() string {
	if ast.RedirectOp(e) == ast.HereDoc {
		return "here-documents are not supported in this core"
	}
	return "read-write redirects are not supported in this core"
}

// closeAll closes every fd this openFDs owns, for use after installing
// them into a child (the parent's copies must not linger open).
func (o *openFDs) closeAll() {
	for _, f := range o.install {
		f.Close()
	}
}

// mergeRedirects prepends ambient (e.g. a Group's) redirects to a
// command's own, so that a command-level redirect on the same fd
// overrides the group's per spec §9's "last-writer-wins keyed by fd"
// merge policy; buildRedirects applies them in order and later entries
// replace earlier ones in the resulting map.
func mergeRedirects(ambient, own []ast.Redirect) []ast.Redirect {
	if len(ambient) == 0 {
		return own
	}
	merged := make([]ast.Redirect, 0, len(ambient)+len(own))
	merged = append(merged, ambient...)
	merged = append(merged, own...)
	return merged
}
