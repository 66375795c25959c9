// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// Package env holds the shell's mutable state: variables, functions, the
// arithmetic-variable table, the job table, the last exit status, and the
// positional parameters (spec §3's Env).
package env

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"sync"

	"github.com/coreshell/coreshell/ast"
)

// Var is one shell variable: its value and its local/exported flags.
type Var struct {
	Value    string
	Exported bool
	Local    bool
}

// Option configures an Env at construction time, mirroring the
// functional-options shape used throughout this module for Runner-like
// types.
type Option func(*Env) error

// Env is the shell's central, mutable state. It is safe for concurrent
// use: the reaper goroutine and the main evaluation loop both touch it,
// so every access goes through Mu (spec §5, "Env as a shared singleton").
// Callers performing more than one operation that must appear atomic
// should hold Mu themselves; individual methods lock only for their own
// duration.
type Env struct {
	Mu sync.Mutex

	vars  map[string]*Var
	funcs map[string]ast.Node
	arith map[string]int64

	Jobs *Jobs

	LastStatus int

	arg0       string
	positional []string
}

// New builds an Env bootstrapped from OS sources: the inherited
// environment, an /etc/passwd lookup for the invoking user's shell, and
// the current working directory (spec §3). Options are applied after
// bootstrapping, so they can override any of the above.
func New(opts ...Option) (*Env, error) {
	e := &Env{
		vars:  make(map[string]*Var),
		funcs: make(map[string]ast.Node),
		arith: make(map[string]int64),
		Jobs:  NewJobs(),
	}
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		e.vars[name] = &Var{Value: val, Exported: true}
	}
	if u, err := user.Current(); err == nil {
		if _, ok := e.vars["USER"]; !ok {
			e.vars["USER"] = &Var{Value: u.Username, Exported: true}
		}
		if _, ok := e.vars["HOME"]; !ok {
			e.vars["HOME"] = &Var{Value: u.HomeDir, Exported: true}
		}
		if _, ok := e.vars["SHELL"]; !ok {
			if sh := lookupLoginShell(u.Username); sh != "" {
				e.vars["SHELL"] = &Var{Value: sh, Exported: true}
			}
		}
	}
	if wd, err := os.Getwd(); err == nil {
		e.vars["PWD"] = &Var{Value: wd, Exported: true}
	}
	e.arg0 = "coreshell"
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Clone returns a deep-enough copy of e for subshell isolation (spec
// §3's Subshell, "evaluated in a nested, isolated environment"):
// variables, functions, and positional parameters are copied so writes
// inside the subshell never reach the parent, while the job table and
// exported-process identity are shared, since background jobs started
// in a subshell are still this shell's jobs.
func (e *Env) Clone() *Env {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	clone := &Env{
		vars:       make(map[string]*Var, len(e.vars)),
		funcs:      make(map[string]ast.Node, len(e.funcs)),
		arith:      make(map[string]int64, len(e.arith)),
		Jobs:       e.Jobs,
		LastStatus: e.LastStatus,
		arg0:       e.arg0,
		positional: append([]string(nil), e.positional...),
	}
	for name, v := range e.vars {
		cp := *v
		clone.vars[name] = &cp
	}
	for name, body := range e.funcs {
		clone.funcs[name] = body
	}
	for name, val := range e.arith {
		clone.arith[name] = val
	}
	return clone
}

// lookupLoginShell reads /etc/passwd looking for username's login shell,
// the seventh colon-separated field. A missing or unreadable file simply
// leaves SHELL unset, since not every environment ships /etc/passwd.
func lookupLoginShell(username string) string {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}
	defer f.Close()
	prefix := username + ":"
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) >= 7 {
			return fields[6]
		}
	}
	return ""
}

// Args sets the program name and positional parameters ($0, $1, ...).
func Args(arg0 string, positional []string) Option {
	return func(e *Env) error {
		e.arg0 = arg0
		e.positional = append([]string(nil), positional...)
		return nil
	}
}

// Get returns a variable's value, special-casing the parameter-expansion
// names that are not ordinary variables: $?, $#, $0 and the positional
// parameters. An unset variable yields the empty string, per spec §4.3.
func (e *Env) Get(name string) string {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.getLocked(name)
}

func (e *Env) getLocked(name string) string {
	switch name {
	case "?":
		return strconv.Itoa(e.LastStatus)
	case "#":
		return strconv.Itoa(len(e.positional))
	case "0":
		return e.arg0
	case "@", "*":
		return strings.Join(e.positional, " ")
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		if n <= len(e.positional) {
			return e.positional[n-1]
		}
		return ""
	}
	if v, ok := e.vars[name]; ok {
		return v.Value
	}
	return ""
}

// Lookup reports whether name is a declared variable (distinct from Get,
// which always succeeds with an empty string).
func (e *Env) Lookup(name string) (string, bool) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	v, ok := e.vars[name]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// SetLocal assigns name=value, the default for plain assignments (spec
// §4.5.1). A new variable is created non-exported; an existing one keeps
// its exported flag.
func (e *Env) SetLocal(name, value string) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	if v, ok := e.vars[name]; ok {
		v.Value = value
		v.Local = true
		return
	}
	e.vars[name] = &Var{Value: value, Local: true}
}

// Export marks name as exported, setting its value if value is non-nil.
func (e *Env) Export(name string, value *string) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	v, ok := e.vars[name]
	if !ok {
		v = &Var{}
		e.vars[name] = v
	}
	v.Exported = true
	if value != nil {
		v.Value = *value
	}
}

// Unset removes a variable entirely.
func (e *Env) Unset(name string) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	delete(e.vars, name)
}

// Each calls fn for every declared variable; iteration stops early if fn
// returns false.
func (e *Env) Each(fn func(name string, v Var) bool) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	for name, v := range e.vars {
		if !fn(name, *v) {
			return
		}
	}
}

// Environ builds a "NAME=value" slice of every exported variable,
// suitable for exec'ing an external program (spec §4.5.1 step 3).
func (e *Env) Environ() []string {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	out := make([]string, 0, len(e.vars))
	for name, v := range e.vars {
		if v.Exported {
			out = append(out, fmt.Sprintf("%s=%s", name, v.Value))
		}
	}
	return out
}

// SetFunc registers a user-defined function body under name.
func (e *Env) SetFunc(name string, body ast.Node) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	e.funcs[name] = body
}

// Func looks up a user-defined function.
func (e *Env) Func(name string) (ast.Node, bool) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	n, ok := e.funcs[name]
	return n, ok
}

// Positional returns a copy of the current positional parameters.
func (e *Env) Positional() []string {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return append([]string(nil), e.positional...)
}

// PushPositional temporarily replaces the positional parameters,
// returning a restore function; used to isolate $1..$n across a function
// call (spec §9's open question: a faithful shell isolates these).
func (e *Env) PushPositional(args []string) (restore func()) {
	e.Mu.Lock()
	old := e.positional
	e.positional = args
	e.Mu.Unlock()
	return func() {
		e.Mu.Lock()
		e.positional = old
		e.Mu.Unlock()
	}
}

// PushAssignments temporarily applies name=value pairs as local
// variables, returning a restore function; used to give a builtin or
// function call's prefix assignments effect for its duration (spec
// §4.5.1) without leaking them into the surrounding scope once it
// returns.
func (e *Env) PushAssignments(assigns map[string]string) (restore func()) {
	e.Mu.Lock()
	type saved struct {
		v  Var
		ok bool
	}
	prev := make(map[string]saved, len(assigns))
	for name, val := range assigns {
		if v, ok := e.vars[name]; ok {
			prev[name] = saved{v: *v, ok: true}
			v.Value = val
		} else {
			prev[name] = saved{ok: false}
			e.vars[name] = &Var{Value: val, Local: true}
		}
	}
	e.Mu.Unlock()
	return func() {
		e.Mu.Lock()
		defer e.Mu.Unlock()
		for name, s := range prev {
			if s.ok {
				cp := s.v
				e.vars[name] = &cp
			} else {
				delete(e.vars, name)
			}
		}
	}
}

// Arith gets/sets an entry in the arithmetic-variable table used by
// `$((...))` and `let`-style expressions; evaluation itself is out of
// scope here (spec §9 leaves it a pure-function hook for the caller).
func (e *Env) Arith(name string) int64 {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	return e.arith[name]
}

// SetArith sets an arithmetic variable.
func (e *Env) SetArith(name string, v int64) {
	e.Mu.Lock()
	defer e.Mu.Unlock()
	e.arith[name] = v
}
