// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/expand"
)

// execCommand implements spec §4.5.1: expand argv, build the fd map,
// classify argv[0], and run it.
func (r *Runner) execCommand(ctx context.Context, node ast.Command, ambient []ast.Redirect, background bool) (int, error) {
	cfg := r.ecfg(ctx)

	assigns := make(map[string]string, len(node.Assignments))
	for _, a := range node.Assignments {
		v, err := expand.Literal(cfg, a.Value)
		if err != nil {
			return 1, err
		}
		assigns[a.Name] = v
	}

	if len(node.Cmd.Parts) == 0 {
		// Pure-assignment command: set each name=value as a local
		// (non-exported) variable, status 0 (spec §4.5.1 step 4).
		for name, v := range assigns {
			r.Env.SetLocal(name, v)
		}
		return 0, nil
	}

	argv, err := expand.Fields(cfg, append([]ast.Word{node.Cmd}, node.Args...)...)
	if err != nil {
		return 1, err
	}
	if len(argv) == 0 {
		return 0, nil
	}

	merged := mergeRedirects(ambient, node.Redirects)
	fds, err := buildRedirects(cfg, merged)
	if err != nil {
		return 1, err
	}
	defer fds.closeAll()

	switch {
	case r.isFunc(argv[0]):
		restoreAssigns := r.Env.PushAssignments(assigns)
		defer restoreAssigns()
		return r.runFunction(ctx, argv, fds)
	case r.isBuiltin(argv[0]):
		restoreAssigns := r.Env.PushAssignments(assigns)
		defer restoreAssigns()
		return r.runBuiltin(ctx, argv, fds)
	default:
		path, lookErr := LookPathDir(r.Dir, r.Env, argv[0])
		if lookErr != nil {
			fmt.Fprintf(r.Stderr, "%s: command not found\n", argv[0])
			return 127, nil
		}
		return r.runExternal(ctx, path, argv, assigns, fds, background)
	}
}

func (r *Runner) isFunc(name string) bool {
	_, ok := r.Env.Func(name)
	return ok
}

func (r *Runner) isBuiltin(name string) bool {
	_, ok := r.builtins[name]
	return ok
}

// runFunction executes a user-defined function body, isolating
// positional parameters to argv[1:] for the call's duration (spec §9:
// "a faithful shell does isolate them").
func (r *Runner) runFunction(ctx context.Context, argv []string, fds *openFDs) (int, error) {
	body, _ := r.Env.Func(argv[0])
	restore := r.Env.PushPositional(argv[1:])
	defer restore()

	restoreIO := r.installRedirectsForInProcess(fds)
	defer restoreIO()

	status, err := r.exec(ctx, body, nil, false)
	if sig, ok := err.(LoopSignal); ok {
		// A stray break/continue leaking out of a function body behaves
		// like falling off the end of it.
		_ = sig
		return status, nil
	}
	return status, err
}

func (r *Runner) runBuiltin(ctx context.Context, argv []string, fds *openFDs) (int, error) {
	b := r.builtins[argv[0]]
	restoreIO := r.installRedirectsForInProcess(fds)
	defer restoreIO()
	return b(ctx, r, argv[1:])
}

// installRedirectsForInProcess swaps the Runner's own stdio fields for
// the duration of a builtin or function call, the in-process analogue
// of "duplicating the current process's fds, installing the map,
// running, and restoring" from spec §4.5.1.
func (r *Runner) installRedirectsForInProcess(fds *openFDs) (restore func()) {
	oldIn, oldOut, oldErr := r.Stdin, r.Stdout, r.Stderr
	if f, ok := fds.install[0]; ok {
		r.Stdin = f
	}
	if f, ok := fds.install[1]; ok {
		r.Stdout = f
	}
	if f, ok := fds.install[2]; ok {
		r.Stderr = f
	}
	return func() { r.Stdin, r.Stdout, r.Stderr = oldIn, oldOut, oldErr }
}
