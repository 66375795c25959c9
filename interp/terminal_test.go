// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"bytes"
	"context"
	"testing"

	"github.com/creack/pty"
	qt "github.com/frankban/quicktest"

	"github.com/coreshell/coreshell/syntax"
)

// TestRunnerDetectsControllingTerminal checks that a Runner whose stdin
// is backed by a real pty records a usable termFD, unlike the /dev/null
// stdin used elsewhere in this package's tests.
func TestRunnerDetectsControllingTerminal(t *testing.T) {
	t.Parallel()
	ptmx, tty, err := pty.Open()
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { ptmx.Close(); tty.Close() })

	var stdout, stderr bytes.Buffer
	r, err := New(StdIO(tty, &stdout, &stderr))
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(r.Close)

	qt.Assert(t, r.termFD, qt.Equals, int(tty.Fd()))
	qt.Assert(t, isTerminalFD(tty), qt.IsTrue)

	node, err := syntax.Parse([]byte("echo hi"))
	qt.Assert(t, err, qt.IsNil)
	err = r.Run(context.Background(), node)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, stdout.String(), qt.Equals, "hi\n")
}

// TestNonTerminalStdinLeavesTermFDUnset mirrors the /dev/null case used
// by the rest of this package's tests, confirming the pty case above is
// actually exercising a different code path rather than always being
// true.
func TestNonTerminalStdinLeavesTermFDUnset(t *testing.T) {
	t.Parallel()
	r, _, _ := newTestRunner(t)
	qt.Assert(t, r.termFD, qt.Equals, -1)
}
