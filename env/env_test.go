// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package env

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	e, err := New(Args("coreshell", []string{"one", "two"}))
	qt.Assert(t, err, qt.IsNil)
	return e
}

func TestGetSetLocal(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	qt.Assert(t, e.Get("FOO"), qt.Equals, "")
	e.SetLocal("FOO", "bar")
	qt.Assert(t, e.Get("FOO"), qt.Equals, "bar")

	v, ok := e.Lookup("FOO")
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, v, qt.Equals, "bar")

	_, ok = e.Lookup("MISSING")
	qt.Assert(t, ok, qt.IsFalse)
}

func TestGetSpecialParameters(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	qt.Assert(t, e.Get("0"), qt.Equals, "coreshell")
	qt.Assert(t, e.Get("1"), qt.Equals, "one")
	qt.Assert(t, e.Get("2"), qt.Equals, "two")
	qt.Assert(t, e.Get("3"), qt.Equals, "")
	qt.Assert(t, e.Get("#"), qt.Equals, "2")
	qt.Assert(t, e.Get("@"), qt.Equals, "one two")
	qt.Assert(t, e.Get("?"), qt.Equals, "0")
	e.LastStatus = 7
	qt.Assert(t, e.Get("?"), qt.Equals, "7")
}

func TestExport(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	e.SetLocal("FOO", "bar")
	found := false
	e.Each(func(name string, v Var) bool {
		if name == "FOO" {
			found = true
			qt.Assert(t, v.Exported, qt.IsFalse)
		}
		return true
	})
	qt.Assert(t, found, qt.IsTrue)

	e.Export("FOO", nil)
	found = false
	e.Each(func(name string, v Var) bool {
		if name == "FOO" {
			found = true
			qt.Assert(t, v.Exported, qt.IsTrue)
			qt.Assert(t, v.Value, qt.Equals, "bar")
		}
		return true
	})
	qt.Assert(t, found, qt.IsTrue)

	val := "baz"
	e.Export("NEWVAR", &val)
	qt.Assert(t, e.Get("NEWVAR"), qt.Equals, "baz")
}

func TestUnset(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	e.SetLocal("FOO", "bar")
	e.Unset("FOO")
	_, ok := e.Lookup("FOO")
	qt.Assert(t, ok, qt.IsFalse)
}

func TestEnviron(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	e.SetLocal("LOCALONLY", "x")
	e.Export("EXPORTED", nil)
	e.SetLocal("EXPORTED", "y")

	environ := e.Environ()
	var sawExported, sawLocal bool
	for _, kv := range environ {
		if kv == "EXPORTED=y" {
			sawExported = true
		}
		if kv == "LOCALONLY=x" {
			sawLocal = true
		}
	}
	qt.Assert(t, sawExported, qt.IsTrue)
	qt.Assert(t, sawLocal, qt.IsFalse)
}

func TestFuncs(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	_, ok := e.Func("greet")
	qt.Assert(t, ok, qt.IsFalse)
	e.SetFunc("greet", nil)
	_, ok = e.Func("greet")
	qt.Assert(t, ok, qt.IsTrue)
}

func TestPositionalAndPush(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	qt.Assert(t, e.Positional(), qt.DeepEquals, []string{"one", "two"})

	restore := e.PushPositional([]string{"a", "b", "c"})
	qt.Assert(t, e.Positional(), qt.DeepEquals, []string{"a", "b", "c"})
	qt.Assert(t, e.Get("1"), qt.Equals, "a")
	qt.Assert(t, e.Get("#"), qt.Equals, "3")

	restore()
	qt.Assert(t, e.Positional(), qt.DeepEquals, []string{"one", "two"})
}

func TestArith(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	qt.Assert(t, e.Arith("x"), qt.Equals, int64(0))
	e.SetArith("x", 42)
	qt.Assert(t, e.Arith("x"), qt.Equals, int64(42))
}

func TestClone(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	e.SetLocal("FOO", "parent")
	e.SetFunc("greet", nil)

	clone := e.Clone()
	qt.Assert(t, clone.Get("FOO"), qt.Equals, "parent")

	clone.SetLocal("FOO", "child")
	qt.Assert(t, clone.Get("FOO"), qt.Equals, "child")
	qt.Assert(t, e.Get("FOO"), qt.Equals, "parent")

	clone.SetLocal("ONLYCHILD", "x")
	_, ok := e.Lookup("ONLYCHILD")
	qt.Assert(t, ok, qt.IsFalse)

	// The job table is shared, not copied.
	qt.Assert(t, clone.Jobs, qt.Equals, e.Jobs)
}
