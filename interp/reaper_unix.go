// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/coreshell/coreshell/env"
)

// reaper is the background goroutine draining terminated children and
// updating job/process statuses (spec §4.6). Its mutations to the job
// table are serialized through Env's own mutex; the foreground wait
// path may race it to reap the same PID, which is tolerated by treating
// ECHILD/"already reaped" as a silent no-op (spec §5).
type reaper struct {
	env  *env.Env
	stopCh chan struct{}
	done chan struct{}
}

func newReaper(e *env.Env) *reaper {
	return &reaper{env: e, stopCh: make(chan struct{}), done: make(chan struct{})}
}

func (r *reaper) start() {
	go r.loop()
}

func (r *reaper) stop() {
	close(r.stopCh)
	<-r.done
}

func (r *reaper) loop() {
	defer close(r.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *reaper) reapOnce() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err != nil || pid <= 0 {
			return
		}
		status := statusFromWait(ws)
		r.env.Mu.Lock()
		job, done := r.env.Jobs.UpdateProcStatus(pid, status)
		if status == env.Terminated || status == env.Done {
			r.env.Jobs.UpdateProcExit(pid, exitCodeFromWait(ws))
		}
		if done && job != nil {
			r.env.Jobs.Remove(job.PGID)
		}
		r.env.Mu.Unlock()
	}
}

func statusFromWait(ws unix.WaitStatus) env.Status {
	switch {
	case ws.Stopped():
		return env.Stopped
	case ws.Continued():
		return env.Running
	case ws.Signaled():
		return env.Terminated
	default:
		return env.Done
	}
}

// exitCodeFromWait turns a terminal wait status into a shell exit code:
// the raw code for a normal exit, 128+signal for one that killed the
// process (matching most shells' $? convention).
func exitCodeFromWait(ws unix.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}
