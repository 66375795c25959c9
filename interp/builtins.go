// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coreshell/coreshell/env"
)

// Builtin is one in-process command, run with argv[0] already stripped
// and the Runner's stdio already swapped to the command's redirects
// (spec §4.5.1's built-in table).
type Builtin func(ctx context.Context, r *Runner, args []string) (int, error)

// defaultBuiltins returns the built-in command table, grounded on the
// original implementation's build_command/get_command_type dispatch:
// cd, pwd, export, unset, exit, type, jobs, fg, bg, kill, wait, shift,
// true, false, and echo.
func defaultBuiltins() map[string]Builtin {
	return map[string]Builtin{
		"cd":     builtinCd,
		"pwd":    builtinPwd,
		"export": builtinExport,
		"unset":  builtinUnset,
		"exit":   builtinExit,
		"type":   builtinType,
		"jobs":   builtinJobs,
		"fg":     builtinFg,
		"bg":     builtinBg,
		"kill":   builtinKill,
		"wait":   builtinWait,
		"shift":  builtinShift,
		"true":   builtinTrue,
		"false":  builtinFalse,
		"echo":   builtinEcho,
	}
}

func builtinCd(ctx context.Context, r *Runner, args []string) (int, error) {
	dir := r.Env.Get("HOME")
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		fmt.Fprintln(r.Stderr, "cd: HOME not set")
		return 1, nil
	}
	if !strings.HasPrefix(dir, "/") {
		dir = r.Dir + "/" + dir
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(r.Stderr, "cd: %s: No such file or directory\n", dir)
		return 1, nil
	}
	r.Dir = dir
	r.Env.SetLocal("PWD", dir)
	return 0, nil
}

func builtinPwd(ctx context.Context, r *Runner, args []string) (int, error) {
	fmt.Fprintln(r.Stdout, r.Dir)
	return 0, nil
}

func builtinExport(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		var names []string
		r.Env.Each(func(name string, v env.Var) bool {
			if v.Exported {
				names = append(names, name)
			}
			return true
		})
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.Stdout, "export %s=%s\n", name, r.Env.Get(name))
		}
		return 0, nil
	}
	for _, a := range args {
		name, value, hasValue := strings.Cut(a, "=")
		if hasValue {
			r.Env.Export(name, &value)
		} else {
			r.Env.Export(name, nil)
		}
	}
	return 0, nil
}

func builtinUnset(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, name := range args {
		r.Env.Unset(name)
	}
	return 0, nil
}

func builtinExit(ctx context.Context, r *Runner, args []string) (int, error) {
	code := r.Env.LastStatus
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return code, NewExitStatus(uint8(code))
}

func builtinType(ctx context.Context, r *Runner, args []string) (int, error) {
	status := 0
	for _, name := range args {
		switch {
		case r.isFunc(name):
			fmt.Fprintf(r.Stdout, "%s is a function\n", name)
		case r.isBuiltin(name):
			fmt.Fprintf(r.Stdout, "%s is a shell builtin\n", name)
		default:
			if path, err := LookPathDir(r.Dir, r.Env, name); err == nil {
				fmt.Fprintf(r.Stdout, "%s is %s\n", name, path)
			} else {
				fmt.Fprintf(r.Stderr, "%s: not found\n", name)
				status = 1
			}
		}
	}
	return status, nil
}

func builtinJobs(ctx context.Context, r *Runner, args []string) (int, error) {
	r.Env.Mu.Lock()
	jobs := r.Env.Jobs.All()
	r.Env.Mu.Unlock()
	for _, j := range jobs {
		marker := " "
		if j.Current {
			marker = "+"
		} else if j.Previous {
			marker = "-"
		}
		fmt.Fprintf(r.Stdout, "[%s]%s  %-10s %s\n", strings.TrimPrefix(j.ID, "%"), marker, j.Status, j.Command)
	}
	return 0, nil
}

func builtinFg(ctx context.Context, r *Runner, args []string) (int, error) {
	j, ok := r.resolveJobArg(args)
	if !ok {
		fmt.Fprintln(r.Stderr, "fg: no such job")
		return 1, nil
	}
	fmt.Fprintln(r.Stdout, j.Command)
	if err := killProcessGroup(j.PGID, sigCont); err != nil {
		return 1, nil
	}
	r.Env.Mu.Lock()
	for _, pid := range j.PIDs {
		r.Env.Jobs.UpdateProcStatus(pid, env.Running)
	}
	r.Env.Mu.Unlock()
	return r.waitForeground(j)
}

func builtinBg(ctx context.Context, r *Runner, args []string) (int, error) {
	j, ok := r.resolveJobArg(args)
	if !ok {
		fmt.Fprintln(r.Stderr, "bg: no such job")
		return 1, nil
	}
	if err := killProcessGroup(j.PGID, sigCont); err != nil {
		return 1, nil
	}
	fmt.Fprintf(r.Stdout, "[%s] %s &\n", strings.TrimPrefix(j.ID, "%"), j.Command)
	return 0, nil
}

func builtinKill(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	sig := sigTerm
	target := args[len(args)-1]
	if strings.HasPrefix(target, "%") {
		r.Env.Mu.Lock()
		j, ok := lookupJobByLabel(r, target)
		r.Env.Mu.Unlock()
		if !ok {
			fmt.Fprintf(r.Stderr, "kill: %s: no such job\n", target)
			return 1, nil
		}
		killProcessGroup(j.PGID, sig)
		return 0, nil
	}
	pid, err := strconv.Atoi(target)
	if err != nil {
		fmt.Fprintf(r.Stderr, "kill: %s: arguments must be process or job IDs\n", target)
		return 1, nil
	}
	killPID(pid, sig)
	return 0, nil
}

func builtinWait(ctx context.Context, r *Runner, args []string) (int, error) {
	status := 0
	for {
		r.Env.Mu.Lock()
		jobs := r.Env.Jobs.All()
		r.Env.Mu.Unlock()
		if len(jobs) == 0 {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// resolveJobArg resolves a fg/bg argument ("%N", "%+", "%-", or none) to
// a job, defaulting to the current (%+) job per spec §3's shorthand.
func (r *Runner) resolveJobArg(args []string) (*env.Job, bool) {
	r.Env.Mu.Lock()
	defer r.Env.Mu.Unlock()
	if len(args) == 0 {
		return r.Env.Jobs.Last()
	}
	return lookupJobByLabel(r, args[0])
}

// lookupJobByLabel must be called with r.Env.Mu held.
func lookupJobByLabel(r *Runner, label string) (*env.Job, bool) {
	label = strings.TrimPrefix(label, "%")
	switch label {
	case "+", "":
		return r.Env.Jobs.Last()
	case "-":
		return r.Env.Jobs.PreviousJob()
	}
	n, err := strconv.Atoi(label)
	if err != nil {
		return nil, false
	}
	for _, j := range r.Env.Jobs.All() {
		if j.ID == "%"+strconv.Itoa(n) {
			return j, true
		}
	}
	return nil, false
}

// waitForeground hands the controlling terminal to j's process group,
// polls until every process in it reaches a terminal or stopped state,
// then reclaims the terminal for the shell (spec §5's foreground-wait
// terminal-control dance, mirrored from the original implementation's
// tcsetpgrp bracketing).
func (r *Runner) waitForeground(j *env.Job) (int, error) {
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, j.PGID)
	}
	status := 0
	for {
		r.Env.Mu.Lock()
		cur, ok := r.Env.Jobs.Get(j.PGID)
		r.Env.Mu.Unlock()
		if !ok {
			break
		}
		if cur.Status == env.Stopped {
			status = 1
			fmt.Fprintln(r.Stdout)
			break
		}
		if cur.Status == env.Done {
			status = cur.ExitCode
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if r.termFD >= 0 {
		setForegroundGroup(r.termFD, r.shellPGID)
	}
	return status, nil
}

func builtinShift(ctx context.Context, r *Runner, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			n = v
		}
	}
	pos := r.Env.Positional()
	if n > len(pos) {
		return 1, nil
	}
	restore := r.Env.PushPositional(pos[n:])
	_ = restore
	return 0, nil
}

func builtinTrue(ctx context.Context, r *Runner, args []string) (int, error)  { return 0, nil }
func builtinFalse(ctx context.Context, r *Runner, args []string) (int, error) { return 1, nil }

func builtinEcho(ctx context.Context, r *Runner, args []string) (int, error) {
	fmt.Fprintln(r.Stdout, strings.Join(args, " "))
	return 0, nil
}
