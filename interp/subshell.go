// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"

	"github.com/coreshell/coreshell/ast"
)

// execSubshell evaluates n against a cloned Env, so that variable
// assignments, function definitions, and `cd` made inside `( ... )`
// never escape it (spec §3's Subshell, "a nested, isolated
// environment"). This core models the isolation at the Env level
// rather than by forking the process, since nothing outside the
// subshell's own control-flow needs a separate address space.
func (r *Runner) execSubshell(ctx context.Context, n ast.Node, ambient []ast.Redirect) (int, error) {
	sub := *r
	sub.Env = r.Env.Clone()
	status, err := sub.exec(ctx, n, ambient, false)
	if _, ok := err.(LoopSignal); ok {
		return status, nil
	}
	return status, err
}
