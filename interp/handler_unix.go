// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build unix

package interp

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func isTerminal(fd int) bool { return term.IsTerminal(fd) }

// setForegroundGroup gives pgid control of the controlling terminal,
// masking SIGTTOU around the ioctl so the shell itself is never
// suspended for touching the terminal from a background group (spec
// §5, "SIGTTOU is masked around tcsetpgrp").
func setForegroundGroup(termFD, pgid int) error {
	signal.Ignore(syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTOU)
	return unix.IoctlSetPointerInt(termFD, unix.TIOCSPGRP, pgid)
}

// joinProcessGroup assigns pid to pgid from the parent side, race-
// proofing the child's own setpgid call at exec time (spec §4.5.2 step
// 3). ESRCH/EACCES are tolerated: the child may have already exited or
// already made the call itself.
func joinProcessGroup(pid, pgid int) {
	_ = unix.Setpgid(pid, pgid)
}

func sysProcAttrForGroup(pgid int) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true, Pgid: pgid}
}

func killProcessGroup(pgid int, sig syscall.Signal) error {
	return syscall.Kill(-pgid, sig)
}

func getpgrp() int { return os.Getpgrp() }

// Signal constants used by the job-control builtins, kept behind the
// build tag since not every target defines SIGCONT.
const (
	sigTerm = syscall.SIGTERM
	sigCont = syscall.SIGCONT
)

func killPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// waitGroup blocks until every pid in a process group has gone
// terminal or any of them stops, mirroring the original implementation's
// waitpid(-pgid, WUNTRACED) loop (spec §4.5.2). status is the exit code
// of lastPID, the pipeline's final stage.
func waitGroup(pgid int, pids []int, lastPID int) (status int, stopped bool) {
	remaining := len(pids)
	for remaining > 0 {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-pgid, &ws, unix.WUNTRACED, nil)
		if err != nil {
			return status, false
		}
		switch {
		case ws.Stopped():
			return status, true
		case ws.Signaled():
			remaining--
			if pid == lastPID {
				status = 128 + int(ws.Signal())
			}
		default:
			remaining--
			if pid == lastPID {
				status = ws.ExitStatus()
			}
		}
	}
	return status, false
}
