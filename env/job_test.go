// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package env

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestJobsAddAndGet(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	j := js.Add(100, []int{100, 101}, "echo hi | cat")
	qt.Assert(t, j.ID, qt.Equals, "%1")
	qt.Assert(t, j.Status, qt.Equals, Running)
	qt.Assert(t, j.Current, qt.IsTrue)

	got, ok := js.Get(100)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, got, qt.Equals, j)
}

func TestJobsCurrentPrevious(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	j1 := js.Add(100, []int{100}, "cmd1")
	j2 := js.Add(200, []int{200}, "cmd2")

	qt.Assert(t, j1.Current, qt.IsFalse)
	qt.Assert(t, j1.Previous, qt.IsTrue)
	qt.Assert(t, j2.Current, qt.IsTrue)
	qt.Assert(t, j2.Previous, qt.IsFalse)

	last, ok := js.Last()
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, last, qt.Equals, j2)

	prev, ok := js.PreviousJob()
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, prev, qt.Equals, j1)
}

func TestJobsUpdateProcStatus(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	js.Add(100, []int{100, 101}, "cmd")

	job, done := js.UpdateProcStatus(100, Done)
	qt.Assert(t, job, qt.IsNotNil)
	qt.Assert(t, done, qt.IsFalse)
	qt.Assert(t, job.Status, qt.Equals, Running)

	job, done = js.UpdateProcStatus(101, Done)
	qt.Assert(t, done, qt.IsTrue)
	qt.Assert(t, job.Status, qt.Equals, Done)
}

func TestJobsUpdateProcStatusStopped(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	js.Add(100, []int{100}, "cmd")
	job, done := js.UpdateProcStatus(100, Stopped)
	qt.Assert(t, done, qt.IsFalse)
	qt.Assert(t, job.Status, qt.Equals, Stopped)
}

func TestJobsUpdateProcExit(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	js.Add(100, []int{100, 101}, "cmd1 | cmd2")

	// Only the last pid's exit code becomes the job's own.
	js.UpdateProcExit(100, 1)
	job, ok := js.Get(100)
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, job.ExitCode, qt.Equals, 0)

	js.UpdateProcExit(101, 3)
	qt.Assert(t, job.ExitCode, qt.Equals, 3)
}

func TestJobsRemove(t *testing.T) {
	t.Parallel()
	js := NewJobs()
	js.Add(100, []int{100}, "cmd1")
	js.Add(200, []int{200}, "cmd2")

	js.Remove(200)
	_, ok := js.Get(200)
	qt.Assert(t, ok, qt.IsFalse)

	all := js.All()
	qt.Assert(t, len(all), qt.Equals, 1)
	qt.Assert(t, all[0].PGID, qt.Equals, 100)

	// %+ falls back to the previous job now that the current one is gone.
	last, ok := js.Last()
	qt.Assert(t, ok, qt.IsTrue)
	qt.Assert(t, last.PGID, qt.Equals, 100)
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	tests := [...]struct {
		st   Status
		want string
	}{
		{Running, "Running"},
		{Stopped, "Stopped"},
		{Terminated, "Terminated"},
		{Done, "Done"},
		{Status(99), "Unknown"},
	}
	for _, test := range tests {
		test := test
		t.Run("", func(t *testing.T) {
			t.Parallel()
			qt.Assert(t, test.st.String(), qt.Equals, test.want)
		})
	}
}
