// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

// coreshell is a POSIX-style interactive command shell core: lexer,
// parser, expander, and executor wired into a runnable program.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/coreshell/coreshell/env"
	"github.com/coreshell/coreshell/interp"
	"github.com/coreshell/coreshell/syntax"
)

var command = flag.String("c", "", "command to be executed")

func main() { os.Exit(main1()) }

// main1 runs the program and returns its exit status, split out from
// main so the test binary can re-exec itself as "coreshell" under
// testscript (see main_test.go), the pattern the teacher's shfmt tests
// use.
func main1() int {
	flag.Parse()
	err := runAll()
	var es interp.ExitStatus
	if errors.As(err, &es) {
		return int(es)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var se *syntax.SyntaxError
		if errors.As(err, &se) {
			return 2
		}
		return 1
	}
	return 0
}

func runAll() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := *command == "" && flag.NArg() == 0 && term.IsTerminal(int(os.Stdin.Fd()))

	e, err := env.New(env.Args(progName(), flag.Args()))
	if err != nil {
		return err
	}
	r, err := interp.New(
		interp.Interactive(interactive),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.WithEnv(e),
		interp.WithCoreutils(),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	if *command != "" {
		return runSource(ctx, r, *command)
	}
	if flag.NArg() == 0 {
		if interactive {
			return runInteractive(ctx, r)
		}
		return runReader(ctx, r, os.Stdin)
	}
	for _, path := range flag.Args() {
		if err := runPath(ctx, r, path); err != nil {
			return err
		}
	}
	return nil
}

func progName() string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "coreshell"
}

func runSource(ctx context.Context, r *interp.Runner, src string) error {
	node, err := syntax.Parse([]byte(src))
	if err != nil {
		return err
	}
	return r.Run(ctx, node)
}

func runReader(ctx context.Context, r *interp.Runner, f *os.File) error {
	var sb strings.Builder
	if _, err := sb.WriteString(readAll(f)); err != nil {
		return err
	}
	return runSource(ctx, r, sb.String())
}

func readAll(f *os.File) string {
	var sb strings.Builder
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		sb.WriteString(sc.Text())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func runPath(ctx context.Context, r *interp.Runner, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return runReader(ctx, r, f)
}

// runInteractive drives a read-eval-print loop: input lines are
// accumulated until they parse as a complete program, then run
// immediately, mirroring the original implementation's prompt-per-
// command REPL (spec §6). A line that still fails to parse after
// several continuations is reported and the buffer is dropped, rather
// than accumulating forever on a genuine syntax error.
func runInteractive(ctx context.Context, r *interp.Runner) error {
	sc := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	const maxContinuations = 20
	continuations := 0

	fmt.Fprint(os.Stdout, "$ ")
	for sc.Scan() {
		buf.WriteString(sc.Text())
		buf.WriteByte('\n')

		node, err := syntax.Parse([]byte(buf.String()))
		if err != nil {
			continuations++
			if continuations < maxContinuations {
				fmt.Fprint(os.Stdout, "> ")
				continue
			}
			fmt.Fprintln(os.Stderr, err)
			buf.Reset()
			continuations = 0
			fmt.Fprint(os.Stdout, "$ ")
			continue
		}

		buf.Reset()
		continuations = 0
		if err := r.Run(ctx, node); err != nil {
			var es interp.ExitStatus
			if errors.As(err, &es) {
				return es
			}
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Fprint(os.Stdout, "$ ")
	}
	fmt.Fprintln(os.Stdout)
	return sc.Err()
}
