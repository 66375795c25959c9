// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package interp interprets the AST produced by syntax/ast against an
// Env, per spec §4.5: simple commands, pipelines, control flow, and the
// process/job-control machinery that backs them.
package interp

import (
	"context"
	"io"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/env"
	"github.com/coreshell/coreshell/expand"
)

// Option configures a Runner at construction time.
type Option func(*Runner) error

// Runner interprets shell programs against one Env. It is not safe for
// concurrent use beyond the reaper goroutine it starts itself.
type Runner struct {
	Env *env.Env
	Dir string

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	Interactive bool

	builtins map[string]Builtin

	// shellPGID is the shell's own process group, reclaimed as the
	// terminal's foreground group after every foreground wait.
	shellPGID int
	termFD    int // controlling terminal fd, or -1 if none

	reaper *reaper

	// bgShells tracks goroutines spawned for background compound
	// statements that have no process of their own to join on (spec
	// §4.5.3), the same role errgroup.Group plays in the teacher's
	// own Runner. Held as a pointer so cloning a Runner for a subshell
	// or pipeline stage shares one group instead of copying its
	// internal WaitGroup mid-use.
	bgShells *errgroup.Group
}

// Interactive marks the Runner as driving an interactive session,
// enabling terminal/job-control behavior.
func Interactive(b bool) Option {
	return func(r *Runner) error { r.Interactive = b; return nil }
}

// StdIO sets the Runner's standard streams.
func StdIO(in *os.File, out, err io.Writer) Option {
	return func(r *Runner) error {
		r.Stdin, r.Stdout, r.Stderr = in, out, err
		return nil
	}
}

// WithEnv attaches an already-constructed Env instead of building a
// fresh default one.
func WithEnv(e *env.Env) Option {
	return func(r *Runner) error { r.Env = e; return nil }
}

// New builds a Runner, applying opts over a set of defaults: the
// process's real stdio, a freshly bootstrapped Env, and the current
// working directory (mirroring the teacher's interp.New).
func New(opts ...Option) (*Runner, error) {
	r := &Runner{
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		termFD:   -1,
		bgShells: &errgroup.Group{},
	}
	r.builtins = defaultBuiltins()
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Env == nil {
		e, err := env.New()
		if err != nil {
			return nil, err
		}
		r.Env = e
	}
	if r.Dir == "" {
		if wd, err := os.Getwd(); err == nil {
			r.Dir = wd
		}
	}
	r.shellPGID = getpgrp()
	if isTerminalFD(r.Stdin) {
		r.termFD = int(r.Stdin.Fd())
	}
	r.reaper = newReaper(r.Env)
	r.reaper.start()
	return r, nil
}

// Close stops the background reaper. Callers of New should defer it.
func (r *Runner) Close() {
	if r.reaper != nil {
		r.reaper.stop()
	}
}

// Run evaluates n to completion, recording its exit status in r.Env and
// returning any error it raised, including the ExitStatus produced by
// the exit builtin.
func (r *Runner) Run(ctx context.Context, n ast.Node) error {
	status, err := r.exec(ctx, n, nil, false)
	r.Env.Mu.Lock()
	r.Env.LastStatus = status
	r.Env.Mu.Unlock()
	if _, ok := err.(LoopSignal); ok {
		// break/continue reaching the top level is simply a no-op stop,
		// matching most shells' lenient handling of a stray keyword.
		return nil
	}
	return err
}

// ecfg builds an expand.Config bound to this Runner's current state, for
// use while expanding exactly one word/command.
func (r *Runner) ecfg(ctx context.Context) *expand.Config {
	return &expand.Config{
		Env: r.Env,
		CmdSubst: func(source string) (string, error) {
			return r.captureSubst(ctx, source)
		},
		Arith: nil,
	}
}

// exec dispatches one AST node. ambient carries a Group's redirects
// down to every command within it (spec §9's group-redirect merge
// policy); background signals that a spawned pipeline/command should
// not be waited on.
func (r *Runner) exec(ctx context.Context, n ast.Node, ambient []ast.Redirect, background bool) (int, error) {
	switch node := n.(type) {
	case ast.Sequence:
		status := 0
		var err error
		for _, sub := range node.Nodes {
			status, err = r.exec(ctx, sub, ambient, false)
			if err != nil {
				return status, err
			}
		}
		return status, nil

	case ast.And:
		status, err := r.exec(ctx, node.L, ambient, false)
		if err != nil || status != 0 {
			return status, err
		}
		return r.exec(ctx, node.R, ambient, false)

	case ast.Or:
		status, err := r.exec(ctx, node.L, ambient, false)
		if err != nil || status == 0 {
			return status, err
		}
		return r.exec(ctx, node.R, ambient, false)

	case ast.Not:
		status, err := r.exec(ctx, node.N, ambient, false)
		if err != nil {
			return status, err
		}
		if status == 0 {
			return 1, nil
		}
		return 0, nil

	case ast.Background:
		return r.execBackground(ctx, node.N, ambient)

	case ast.Subshell:
		return r.execSubshell(ctx, node.N, ambient)

	case ast.Group:
		merged := mergeRedirects(ambient, node.Redirects)
		status := 0
		var err error
		for _, sub := range node.Commands {
			status, err = r.exec(ctx, sub, merged, false)
			if err != nil {
				return status, err
			}
		}
		return status, nil

	case ast.If:
		return r.execIf(ctx, node, ambient)

	case ast.While:
		return r.execLoop(ctx, node.Cond, node.Body, ambient, false)

	case ast.Until:
		return r.execLoop(ctx, node.Cond, node.Body, ambient, true)

	case ast.For:
		return r.execFor(ctx, node, ambient)

	case ast.FunctionDef:
		name, err := expand.Literal(r.ecfg(ctx), node.Name)
		if err != nil {
			return 1, err
		}
		r.Env.SetFunc(name, node.Body)
		return 0, nil

	case ast.Break:
		return 0, LoopSignal{Kind: loopBreak, Level: levelOf(r, ctx, node.Level)}

	case ast.Continue:
		return 0, LoopSignal{Kind: loopContinue, Level: levelOf(r, ctx, node.Level)}

	case ast.Pipeline:
		return r.execPipeline(ctx, node, ambient, background)

	case ast.Command:
		return r.execCommand(ctx, node, ambient, background)
	}
	return 1, nil
}

func levelOf(r *Runner, ctx context.Context, w *ast.Word) int {
	if w == nil {
		return 1
	}
	s, err := expand.Literal(r.ecfg(ctx), *w)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (r *Runner) execIf(ctx context.Context, node ast.If, ambient []ast.Redirect) (int, error) {
	status, err := r.exec(ctx, node.Cond, ambient, false)
	if err != nil {
		return status, err
	}
	if status == 0 {
		return r.exec(ctx, node.Then, ambient, false)
	}
	for _, arm := range node.Elif {
		status, err := r.exec(ctx, arm.Cond, ambient, false)
		if err != nil {
			return status, err
		}
		if status == 0 {
			return r.exec(ctx, arm.Body, ambient, false)
		}
	}
	if node.Else != nil {
		return r.exec(ctx, node.Else, ambient, false)
	}
	return 0, nil
}

func (r *Runner) execLoop(ctx context.Context, cond, body ast.Node, ambient []ast.Redirect, until bool) (int, error) {
	status := 0
	for {
		cs, err := r.exec(ctx, cond, ambient, false)
		if err != nil {
			return cs, err
		}
		truthy := cs == 0
		if until {
			truthy = !truthy
		}
		if !truthy {
			return status, nil
		}
		bs, err := r.exec(ctx, body, ambient, false)
		status = bs
		if sig, ok := err.(LoopSignal); ok {
			if rest, more := sig.decrement(); more {
				return status, rest
			}
			if sig.Kind == loopBreak {
				return status, nil
			}
			continue
		}
		if err != nil {
			return status, err
		}
	}
}

func (r *Runner) execFor(ctx context.Context, node ast.For, ambient []ast.Redirect) (int, error) {
	values, err := expand.Fields(r.ecfg(ctx), node.Values...)
	if err != nil {
		return 1, err
	}
	status := 0
	for _, v := range values {
		r.Env.SetLocal(node.Var, v)
		bs, err := r.exec(ctx, node.Body, ambient, false)
		status = bs
		if sig, ok := err.(LoopSignal); ok {
			if rest, more := sig.decrement(); more {
				return status, rest
			}
			if sig.Kind == loopBreak {
				return status, nil
			}
			continue
		}
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

func isTerminalFD(f *os.File) bool {
	if f == nil {
		return false
	}
	return isTerminal(int(f.Fd()))
}
