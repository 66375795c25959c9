// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coreshell/coreshell/ast"
	"github.com/coreshell/coreshell/env"
	"github.com/coreshell/coreshell/expand"
	"github.com/coreshell/coreshell/syntax"
)

// pgidCoord lets the stages of one pipeline agree on a shared process
// group: the first external stage to start claims it, later ones join.
type pgidCoord struct {
	mu   sync.Mutex
	pgid int
}

type pgidCoordKey struct{}

func withPGIDCoord(ctx context.Context, c *pgidCoord) context.Context {
	return context.WithValue(ctx, pgidCoordKey{}, c)
}

func pgidCoordFrom(ctx context.Context) (*pgidCoord, bool) {
	c, ok := ctx.Value(pgidCoordKey{}).(*pgidCoord)
	return c, ok
}

// execPipeline runs every stage of a pipeline concurrently, connecting
// adjacent stages with an os.Pipe and giving external stages a shared
// process group (spec §4.5.2). Stages that are not simple commands
// (compound statements appearing in a pipeline, a consequence of this
// grammar's pipe-outside-logical precedence) run in-process against a
// cloned Runner instead of forming part of the process group.
func (r *Runner) execPipeline(ctx context.Context, node ast.Pipeline, ambient []ast.Redirect, background bool) (int, error) {
	stages := node.Nodes
	n := len(stages)
	if n == 1 {
		return r.exec(ctx, stages[0], ambient, background)
	}

	readEnds := make([]*os.File, n-1)
	writeEnds := make([]*os.File, n-1)
	for i := range readEnds {
		pr, pw, err := os.Pipe()
		if err != nil {
			return 1, err
		}
		readEnds[i], writeEnds[i] = pr, pw
	}

	coord := &pgidCoord{}
	pctx := withPGIDCoord(ctx, coord)

	statuses := make([]int, n)
	errs := make([]error, n)
	var mu sync.Mutex
	var pids []int

	var g errgroup.Group
	for i, stage := range stages {
		i, stage := i, stage
		sub := *r
		if i > 0 {
			sub.Stdin = readEnds[i-1]
		}
		if i < n-1 {
			sub.Stdout = writeEnds[i]
		}

		g.Go(func() error {
			if cmdNode, ok := stage.(ast.Command); ok {
				status, err, pid := sub.execPipelineStage(pctx, cmdNode, ambient)
				statuses[i], errs[i] = status, err
				if pid != 0 {
					mu.Lock()
					pids = append(pids, pid)
					mu.Unlock()
				}
			} else {
				status, err := sub.exec(pctx, stage, ambient, false)
				statuses[i], errs[i] = status, err
			}
			if i > 0 {
				readEnds[i-1].Close()
			}
			if i < n-1 {
				writeEnds[i].Close()
			}
			return nil
		})
	}

	cmdText := pipelineText(stages)

	if background {
		go func() {
			g.Wait()
			coord.mu.Lock()
			pgid := coord.pgid
			coord.mu.Unlock()
			if pgid != 0 {
				r.Env.Mu.Lock()
				r.Env.Jobs.Remove(pgid)
				r.Env.Mu.Unlock()
			}
		}()
		coord.mu.Lock()
		pgid := coord.pgid
		coord.mu.Unlock()
		if pgid != 0 {
			r.Env.Mu.Lock()
			r.Env.Jobs.Add(pgid, pids, cmdText)
			r.Env.Mu.Unlock()
		}
		return 0, nil
	}

	g.Wait()
	for _, err := range errs {
		if _, ok := err.(LoopSignal); ok {
			return statuses[n-1], err
		}
	}

	coord.mu.Lock()
	pgid := coord.pgid
	coord.mu.Unlock()
	if pgid == 0 || len(pids) == 0 {
		return statuses[n-1], errs[n-1]
	}

	lastPID := pids[len(pids)-1]
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, pgid)
	}
	status, stopped := waitGroup(pgid, pids, lastPID)
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, r.shellPGID)
	}
	if stopped {
		r.Env.Mu.Lock()
		job := r.Env.Jobs.Add(pgid, pids, cmdText)
		job.Status = env.Stopped
		r.Env.Mu.Unlock()
		fmt.Fprintln(r.Stdout)
		return 1, nil
	}
	return status, nil
}

// execPipelineStage runs one Command stage of a pipeline. External
// commands are spawned and left running; the pipeline joins their
// process group and waits on them as a whole afterwards. Functions and
// built-ins have no separate process, so they simply run to completion
// in this goroutine.
func (r *Runner) execPipelineStage(ctx context.Context, node ast.Command, ambient []ast.Redirect) (status int, err error, pid int) {
	cfg := r.ecfg(ctx)
	if len(node.Cmd.Parts) == 0 {
		status, err := r.execCommand(ctx, node, ambient, false)
		return status, err, 0
	}

	assigns := make(map[string]string, len(node.Assignments))
	for _, a := range node.Assignments {
		v, verr := expand.Literal(cfg, a.Value)
		if verr != nil {
			return 1, verr, 0
		}
		assigns[a.Name] = v
	}

	argv, err := expand.Fields(cfg, append([]ast.Word{node.Cmd}, node.Args...)...)
	if err != nil {
		return 1, err, 0
	}
	if len(argv) == 0 {
		return 0, nil, 0
	}

	merged := mergeRedirects(ambient, node.Redirects)
	fds, err := buildRedirects(cfg, merged)
	if err != nil {
		return 1, err, 0
	}
	defer fds.closeAll()

	if r.isFunc(argv[0]) {
		restoreAssigns := r.Env.PushAssignments(assigns)
		defer restoreAssigns()
		status, err := r.runFunction(ctx, argv, fds)
		return status, err, 0
	}
	if r.isBuiltin(argv[0]) {
		restoreAssigns := r.Env.PushAssignments(assigns)
		defer restoreAssigns()
		status, err := r.runBuiltin(ctx, argv, fds)
		return status, err, 0
	}

	path, lookErr := LookPathDir(r.Dir, r.Env, argv[0])
	if lookErr != nil {
		fmt.Fprintf(r.Stderr, "%s: command not found\n", argv[0])
		return 127, nil, 0
	}
	cmd, spawnErr := r.spawnExternal(ctx, path, argv, assigns, fds)
	if spawnErr != nil {
		fmt.Fprintf(r.Stderr, "%s: %v\n", argv[0], spawnErr)
		return 127, nil, 0
	}
	return 0, nil, cmd.Process.Pid
}

// runExternal runs a standalone external command (not part of a
// multi-stage pipeline): it spawns the process and either waits in the
// foreground or returns immediately for a background command (spec
// §4.5.1, §4.5.2). Only a background command, or a foreground one that
// stops, is entered into the job table as a single-process job.
func (r *Runner) runExternal(ctx context.Context, path string, argv []string, assigns map[string]string, fds *openFDs, background bool) (int, error) {
	cmd, err := r.spawnExternal(ctx, path, argv, assigns, fds)
	if err != nil {
		fmt.Fprintf(r.Stderr, "%s: %v\n", argv[0], err)
		return 127, nil
	}
	pid := cmd.Process.Pid
	joinProcessGroup(pid, pid)

	if background {
		r.Env.Mu.Lock()
		job := r.Env.Jobs.Add(pid, []int{pid}, joinArgv(argv))
		r.Env.Mu.Unlock()
		fmt.Fprintf(r.Stdout, "[%s] %d\n", job.ID[1:], pid)
		return 0, nil
	}

	// Wait on the child directly, exactly as execPipeline does for its
	// own foreground stages, rather than polling the job table: the
	// reaper sets Status/ExitCode and removes the job atomically under
	// one lock, so by the time a poller observed Done the entry would
	// already be gone (spec §8's $? invariant depends on this). The
	// reaper's own Wait4(-1, ...) may race this call for the same pid;
	// that race is tolerated the same way reapOnce tolerates it.
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, pid)
	}
	status, stopped := waitGroup(pid, []int{pid}, pid)
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, r.shellPGID)
	}
	if stopped {
		r.Env.Mu.Lock()
		job := r.Env.Jobs.Add(pid, []int{pid}, joinArgv(argv))
		job.Status = env.Stopped
		r.Env.Mu.Unlock()
		fmt.Fprintln(r.Stdout)
		return 1, nil
	}
	return status, nil
}

// spawnExternal builds and starts (but does not wait on) one external
// process, wiring its fds from the Runner's current stdio overridden by
// any redirects, and joining a shared pipeline process group if ctx
// carries one.
func (r *Runner) spawnExternal(ctx context.Context, path string, argv []string, assigns map[string]string, fds *openFDs) (*exec.Cmd, error) {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = r.Dir
	cmd.Env = buildChildEnv(r.Env, assigns)

	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if f, ok := fds.install[0]; ok {
		cmd.Stdin = f
	}
	if f, ok := fds.install[1]; ok {
		cmd.Stdout = f
	}
	if f, ok := fds.install[2]; ok {
		cmd.Stderr = f
	}

	var extraKeys []int
	for fd := range fds.install {
		if fd > 2 {
			extraKeys = append(extraKeys, fd)
		}
	}
	sort.Ints(extraKeys)
	for _, fd := range extraKeys {
		cmd.ExtraFiles = append(cmd.ExtraFiles, fds.install[fd])
	}

	// The child joins an already-claimed pipeline group itself at exec
	// time; the lock is held across Start so two stages cannot both
	// claim the group.
	coord, inPipeline := pgidCoordFrom(ctx)
	pgid := 0
	if inPipeline {
		coord.mu.Lock()
		defer coord.mu.Unlock()
		pgid = coord.pgid
	}
	cmd.SysProcAttr = sysProcAttrForGroup(pgid)
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	if inPipeline {
		if coord.pgid == 0 {
			coord.pgid = cmd.Process.Pid
		} else {
			joinProcessGroup(cmd.Process.Pid, coord.pgid)
		}
	}
	return cmd, nil
}

func buildChildEnv(e *env.Env, assigns map[string]string) []string {
	out := e.Environ()
	for name, v := range assigns {
		out = append(out, name+"="+v)
	}
	return out
}

func joinArgv(argv []string) string {
	s := ""
	for i, a := range argv {
		if i > 0 {
			s += " "
		}
		s += a
	}
	return s
}

func pipelineText(stages []ast.Node) string {
	s := ""
	for i, stage := range stages {
		if i > 0 {
			s += " | "
		}
		if c, ok := stage.(ast.Command); ok && len(c.Cmd.Parts) > 0 {
			if lit, ok := c.Cmd.Parts[0].(ast.Literal); ok {
				s += lit.Text
				continue
			}
		}
		s += "..."
	}
	return s
}

// execBackground runs n without waiting for it, returning immediately
// with status 0 (spec §4.5.3: a background command's own exit status is
// never awaited by the invoking sequence).
func (r *Runner) execBackground(ctx context.Context, n ast.Node, ambient []ast.Redirect) (int, error) {
	if pipe, ok := n.(ast.Pipeline); ok {
		return r.execPipeline(ctx, pipe, ambient, true)
	}
	if cmd, ok := n.(ast.Command); ok {
		return r.execCommand(ctx, cmd, ambient, true)
	}
	sub := *r
	r.bgShells.Go(func() error {
		_, err := sub.exec(ctx, n, ambient, false)
		return err
	})
	return 0, nil
}

// captureSubst re-invokes the interpreter on source, capturing its
// standard output for use as a command substitution's expansion (spec
// §4.3). Unlike a real subshell, it runs against the same Env as the
// caller rather than a clone: `$(...)` does not fork in this core, so
// variable and function writes inside the substitution are visible to
// the parent once it returns. This is a known deviation from POSIX's
// subshell-isolation rule for command substitution, accepted since
// nothing in this core observes the difference without true process
// forking.
func (r *Runner) captureSubst(ctx context.Context, source string) (string, error) {
	node, err := syntax.Parse([]byte(source))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	sub := *r
	sub.Stdout = &buf
	status, err := sub.exec(ctx, node, nil, false)
	r.Env.Mu.Lock()
	r.Env.LastStatus = status
	r.Env.Mu.Unlock()
	if _, ok := err.(LoopSignal); ok {
		return buf.String(), nil
	}
	return buf.String(), err
}
